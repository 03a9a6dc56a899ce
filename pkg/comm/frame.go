package comm

import (
	"fmt"

	"github.com/golang/protobuf/proto"

	pb "github.com/robotalks/picobot/pkg/proto/picobot/v1"
)

// TypeID masks
const (
	TypeIDMaskKind  uint32 = 0x80000000
	TypeIDMaskReply uint32 = 0x00008000
)

// Message Kinds
const (
	TypeIDKindCommand uint32 = 0x00000000
	TypeIDKindEvent   uint32 = 0x80000000
)

// Type IDs of the messages.
const (
	CommandTypeID uint32 = TypeIDKindCommand | 0x0001
	ReplyTypeID   uint32 = CommandTypeID | TypeIDMaskReply
	ReportTypeID  uint32 = TypeIDKindEvent | 0x0001
)

// ErrUnknownType indicates unknown type id.
type ErrUnknownType struct {
	TypeID uint32
}

// Error implements error.
func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown type: %x", e.TypeID)
}

// Frame wraps a message with type information.
type Frame struct {
	pb.Frame
}

// TypeIDOf returns the type id of a message.
func TypeIDOf(msg proto.Message) (uint32, error) {
	switch msg.(type) {
	case *pb.Command:
		return CommandTypeID, nil
	case *pb.Reply:
		return ReplyTypeID, nil
	case *pb.Report:
		return ReportTypeID, nil
	default:
		return 0, fmt.Errorf("unsupported message %T", msg)
	}
}

// FrameFrom creates a Frame from a message.
func FrameFrom(msg proto.Message, seq uint32) (*Frame, error) {
	typeID, err := TypeIDOf(msg)
	if err != nil {
		return nil, err
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return &Frame{Frame: pb.Frame{TypeId: typeID, Sequence: seq, Message: data}}, nil
}

// Decode decodes the frame into actual message.
func (f *Frame) Decode() (proto.Message, error) {
	var msg proto.Message
	switch f.TypeId {
	case CommandTypeID:
		msg = &pb.Command{}
	case ReplyTypeID:
		msg = &pb.Reply{}
	case ReportTypeID:
		msg = &pb.Report{}
	default:
		return nil, &ErrUnknownType{TypeID: f.TypeId}
	}
	if err := proto.Unmarshal(f.Message, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Encode encodes the Frame to bytes.
func (f *Frame) Encode() ([]byte, error) {
	return proto.Marshal(&f.Frame)
}

// IsCommand determines if the message is a command or its reply.
func (f *Frame) IsCommand() bool {
	return f.TypeId&TypeIDMaskKind == TypeIDKindCommand
}

// IsReply determines if the message replies a command.
func (f *Frame) IsReply() bool {
	return f.IsCommand() && f.TypeId&TypeIDMaskReply != 0
}

// DecodeFrame decodes bytes into Frame.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := proto.Unmarshal(data, &f.Frame); err != nil {
		return nil, err
	}
	return &f, nil
}
