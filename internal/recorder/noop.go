package recorder

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ *RunSnapshot) error    { return nil }
func (n *NoopRecorder) RecordFeed(_ *FeedEvent) error     { return nil }
func (n *NoopRecorder) RecordRefill(_ *RefillEvent) error { return nil }
func (n *NoopRecorder) Close() error                      { return nil }
