package mqtt

import (
	"fmt"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes"
	structpb "github.com/golang/protobuf/ptypes/struct"
	tspb "github.com/golang/protobuf/ptypes/timestamp"

	"github.com/robotalks/framelink/pkg/l0/frame"
	"github.com/robotalks/framelink/pkg/l0/link"
)

// Record is a decoded report.
type Record struct {
	Link    string
	Kind    string
	Cmd     byte
	Seq     frame.Seq
	Attempt int
	Error   string
	Time    time.Time
}

// String implements fmt.Stringer.
func (r *Record) String() string {
	msg := fmt.Sprintf("%s %s: %s cmd=%#02x seq=%d", r.Time.Format("15:04:05.000000"), r.Link, r.Kind, r.Cmd, r.Seq)
	if r.Attempt > 0 {
		msg += fmt.Sprintf(" attempt=%d", r.Attempt)
	}
	if r.Error != "" {
		msg += ": " + r.Error
	}
	return msg
}

func numberValue(v float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: v}}
}

func stringValue(s string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}}
}

// EncodeReport encodes a report as a protobuf Struct.
func EncodeReport(r link.Report) ([]byte, error) {
	ts, err := ptypes.TimestampProto(r.Time)
	if err != nil {
		return nil, err
	}
	fields := map[string]*structpb.Value{
		"link":    stringValue(r.Link),
		"kind":    stringValue(r.Kind.String()),
		"cmd":     numberValue(float64(r.Cmd)),
		"seq":     numberValue(float64(r.Seq)),
		"attempt": numberValue(float64(r.Attempt)),
		"time": {Kind: &structpb.Value_StructValue{StructValue: &structpb.Struct{
			Fields: map[string]*structpb.Value{
				"seconds": numberValue(float64(ts.Seconds)),
				"nanos":   numberValue(float64(ts.Nanos)),
			},
		}}},
	}
	if r.Err != nil {
		fields["error"] = stringValue(r.Err.Error())
	}
	return proto.Marshal(&structpb.Struct{Fields: fields})
}

// DecodeReport decodes a report encoded by EncodeReport.
func DecodeReport(data []byte) (*Record, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	rec := &Record{
		Link:    s.Fields["link"].GetStringValue(),
		Kind:    s.Fields["kind"].GetStringValue(),
		Cmd:     byte(s.Fields["cmd"].GetNumberValue()),
		Seq:     frame.Seq(s.Fields["seq"].GetNumberValue()),
		Attempt: int(s.Fields["attempt"].GetNumberValue()),
		Error:   s.Fields["error"].GetStringValue(),
	}
	if rec.Link == "" || rec.Kind == "" {
		return nil, fmt.Errorf("not a report")
	}
	if tv := s.Fields["time"].GetStructValue(); tv != nil {
		t, err := ptypes.Timestamp(&tspb.Timestamp{
			Seconds: int64(tv.Fields["seconds"].GetNumberValue()),
			Nanos:   int32(tv.Fields["nanos"].GetNumberValue()),
		})
		if err != nil {
			return nil, err
		}
		rec.Time = t
	}
	return rec, nil
}
