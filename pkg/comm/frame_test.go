package comm

import (
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pb "github.com/robotalks/picobot/pkg/proto/picobot/v1"
)

func TestFrameKinds(t *testing.T) {
	cases := []struct {
		msg     proto.Message
		command bool
		reply   bool
	}{
		{&pb.Command{Line: "ping"}, true, false},
		{&pb.Reply{Output: "pong"}, true, true},
		{&pb.Report{DeviceId: "bot"}, false, false},
	}
	for _, c := range cases {
		f, err := FrameFrom(c.msg, 7)
		require.NoError(t, err)
		assert.Equal(t, c.command, f.IsCommand(), "%T", c.msg)
		assert.Equal(t, c.reply, f.IsReply(), "%T", c.msg)
	}
}

func TestFrameCarriesMessage(t *testing.T) {
	f, err := FrameFrom(&pb.Report{DeviceId: "bot", Distance: 0.42, Temperature: -3}, 9)
	require.NoError(t, err)
	data, err := f.Encode()
	require.NoError(t, err)

	decoded, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), decoded.Sequence)
	msg, err := decoded.Decode()
	require.NoError(t, err)
	report, ok := msg.(*pb.Report)
	require.True(t, ok)
	assert.Equal(t, "bot", report.DeviceId)
	assert.Equal(t, 0.42, report.Distance)
	assert.Equal(t, int32(-3), report.Temperature)
}

func TestFrameUnknownType(t *testing.T) {
	f := &Frame{Frame: pb.Frame{TypeId: 0x42}}
	_, err := f.Decode()
	var unknown *ErrUnknownType
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, uint32(0x42), unknown.TypeID)

	_, err = FrameFrom(&pb.Frame{}, 1)
	assert.Error(t, err)
}
