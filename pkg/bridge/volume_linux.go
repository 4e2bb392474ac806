package bridge

import (
	"context"
	"fmt"
	"net"

	"github.com/jfreymuth/pulse/proto"
	"go.uber.org/zap"
)

// normal PulseAudio volume (100%)
const maxVolume = 0x10000

const pulseClientName = "mediabridge"

type paEndpointProvider struct {
	logger *zap.SugaredLogger
}

// paEndpoint is bound to the default sink as it was when the context was acquired
type paEndpoint struct {
	logger *zap.SugaredLogger

	client *proto.Client
	conn   net.Conn

	sinkIndex    uint32
	sinkChannels byte
}

func newEndpointProvider(logger *zap.SugaredLogger) (EndpointProvider, error) {
	p := &paEndpointProvider{logger: logger.Named("pulse")}

	p.logger.Debug("Created PA endpoint provider instance")

	return p, nil
}

func (p *paEndpointProvider) Acquire(ctx context.Context) (EndpointContext, error) {
	client, conn, err := proto.Connect("")
	if err != nil {
		return nil, fmt.Errorf("establish PulseAudio connection: %w", err)
	}

	e := &paEndpoint{
		logger: p.logger,
		client: client,
		conn:   conn,
	}

	// the connection is ours alone, so a deadline on it covers every request below
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	request := proto.SetClientName{
		Props: proto.PropList{
			"application.name": proto.PropListString(pulseClientName),
		},
	}
	reply := proto.SetClientNameReply{}

	if err := client.Request(&request, &reply); err != nil {
		e.Release()
		return nil, fmt.Errorf("set PulseAudio client name: %w", err)
	}

	if err := e.resolveDefaultSink(); err != nil {
		e.Release()
		return nil, err
	}

	return e, nil
}

func (e *paEndpoint) MasterVolume() (float32, error) {
	request := proto.GetSinkInfo{
		SinkIndex: e.sinkIndex,
	}
	reply := proto.GetSinkInfoReply{}

	if err := e.client.Request(&request, &reply); err != nil {
		return 0, fmt.Errorf("get sink info: %w", err)
	}

	return parseChannelVolumes(reply.ChannelVolumes), nil
}

func (e *paEndpoint) SetMasterVolume(v float32) error {
	request := proto.SetSinkVolume{
		SinkIndex:      e.sinkIndex,
		ChannelVolumes: createChannelVolumes(e.sinkChannels, v),
	}

	if err := e.client.Request(&request, nil); err != nil {
		return fmt.Errorf("set sink volume: %w", err)
	}

	return nil
}

func (e *paEndpoint) Release() {
	if e.conn == nil {
		return
	}

	if err := e.conn.Close(); err != nil {
		e.logger.Warnw("Failed to close PulseAudio connection", "error", err)
	}

	e.conn = nil
}

func (e *paEndpoint) resolveDefaultSink() error {
	serverInfo := proto.GetServerInfoReply{}
	if err := e.client.Request(&proto.GetServerInfo{}, &serverInfo); err != nil {
		e.logger.Debugw("Failed to get server info, letting the server pick its default sink", "error", err)
	}

	request := defaultSinkRequest(serverInfo.DefaultSinkName)
	reply := proto.GetSinkInfoReply{}

	if err := e.client.Request(&request, &reply); err != nil {
		return fmt.Errorf("get default sink info: %w", err)
	}

	e.sinkIndex = reply.SinkIndex
	e.sinkChannels = reply.Channels

	return nil
}

// defaultSinkRequest looks a sink up by name. Without a name the server answers with its default sink
func defaultSinkRequest(name string) proto.GetSinkInfo {
	return proto.GetSinkInfo{
		SinkIndex: proto.Undefined,
		SinkName:  name,
	}
}

func createChannelVolumes(channels byte, volume float32) []uint32 {
	volumes := make([]uint32, channels)

	for i := range volumes {
		volumes[i] = uint32(volume * maxVolume)
	}

	return volumes
}

func parseChannelVolumes(volumes []uint32) float32 {
	if len(volumes) == 0 {
		return 0
	}

	var level uint32

	for _, volume := range volumes {
		level += volume
	}

	return float32(level) / float32(len(volumes)) / float32(maxVolume)
}
