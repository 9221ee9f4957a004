package domain

// RecordKind classifies a report record.
type RecordKind string

const (
	KindLog     RecordKind = "log"
	KindSuccess RecordKind = "success"
	KindFail    RecordKind = "fail"
)

// ReportRecord is one entry delivered to the callback endpoint. Timestamp is
// milliseconds since the Unix epoch.
type ReportRecord struct {
	Kind      RecordKind `json:"kind"`
	Message   string     `json:"message"`
	Timestamp int64      `json:"timestamp"`
}
