package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldAccountID     = "account_id"
	FieldMonth         = "month"
	FieldFrom          = "from"
	FieldTo            = "to"
	FieldCurrencyID    = "currency_id"
	FieldWindowMonths  = "window_months"
	FieldAmount        = "amount"
	FieldBudgetItemID  = "budget_item_id"
	FieldScope         = "scope"
	FieldRows          = "rows"
	FieldTables        = "tables"
	FieldCacheHit      = "cache_hit"
	FieldShared        = "shared"
	FieldSpreadsheetID = "spreadsheet_id"
	FieldRange         = "range"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentBudget    = "budget"
	ComponentTable     = "table"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
	ComponentReport    = "report"
)

// Operations defines standard operation names
const (
	OpBuildMatrix = "build_matrix"
	OpBuildTables = "build_tables"
	OpSaveCell    = "save_cell"
	OpFetch       = "fetch"
	OpPublish     = "publish"
	OpConsume     = "consume"
	OpExport      = "export"
	OpImport      = "import"
	OpShutdown    = "shutdown"
	OpStartup     = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeTimeout       = "timeout_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeCanceled      = "canceled_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

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

// WithWindow adds the month range and currency of a view request.
func (f LogFields) WithWindow(from, to, currencyID string, months int) LogFields {
	f[FieldFrom] = from
	f[FieldTo] = to
	f[FieldCurrencyID] = currencyID
	if months > 0 {
		f[FieldWindowMonths] = months
	}
	return f
}

// WithCell adds the fields identifying an edited budget cell.
func (f LogFields) WithCell(accountID, month string, amount float64) LogFields {
	f[FieldAccountID] = accountID
	f[FieldMonth] = month
	f[FieldAmount] = amount
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
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
