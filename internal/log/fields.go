package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldKind      = "kind"
	FieldSource    = "source"
	FieldSheet     = "sheet"
	FieldRows      = "rows"
	FieldDropped   = "dropped"
	FieldItemID    = "item_id"
	FieldPolicy    = "policy"
	FieldToday     = "today"
	FieldDuration  = "duration_ms"
	FieldSuccess   = "success"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldBackend   = "backend"
	FieldPath      = "path"
	FieldRequestID = "request_id"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentAnalytics = "analytics"
	ComponentNaming    = "naming"
	ComponentReport    = "report"
	ComponentImport    = "import"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentXLSX      = "xlsx"
	ComponentCache     = "cache"
	ComponentMetrics   = "metrics"
	ComponentBackend   = "backend"
	ComponentHTTP      = "http"
)

// Operations defines standard operation names
const (
	OpRead      = "read"
	OpWrite     = "write"
	OpAppend    = "append"
	OpAggregate = "aggregate"
	OpBucket    = "bucket"
	OpImport    = "import"
	OpPublish   = "publish"
	OpConsume   = "consume"
	OpMigrate   = "migrate"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRun(runID, kind string) LogFields {
	f[FieldRunID] = runID
	f[FieldKind] = kind
	return f
}

// WithError adds the error text; nil errors are skipped.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithSheet records which tab a read or write touched and how many rows moved.
func (f LogFields) WithSheet(sheet string, rows int) LogFields {
	f[FieldSheet] = sheet
	f[FieldRows] = rows
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
