package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldOwnerID     = "owner_id"
	FieldExpenseID   = "expense_id"
	FieldBudgetID    = "budget_id"
	FieldGoalID      = "goal_id"
	FieldCategory    = "category"
	FieldMonth       = "month"
	FieldAmountCents = "amount_cents"
	FieldOldCents    = "old_cents"
	FieldNewCents    = "new_cents"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentExpense   = "expense"
	ComponentBudget    = "budget"
	ComponentGoal      = "goal"
	ComponentIncome    = "income"
	ComponentReconcile = "reconcile"
	ComponentRollover  = "rollover"
	ComponentAlerts    = "alerts"
	ComponentForecast  = "forecast"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentAuth      = "auth"
	ComponentRateLimit = "rate_limit"
)

// Operations defines standard operation names
const (
	OpCreate         = "create"
	OpRead           = "read"
	OpUpdate         = "update"
	OpDelete         = "delete"
	OpList           = "list"
	OpRecomputeSpent = "recompute_spent"
	OpRecomputeGoal  = "recompute_progress"
	OpReconcileAll   = "reconcile_all"
	OpRollover       = "rollover"
	OpPublish        = "publish"
	OpExport         = "export"
	OpShutdown       = "shutdown"
	OpStartup        = "startup"
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

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
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

func (f LogFields) WithOwner(ownerID string) LogFields {
	f[FieldOwnerID] = ownerID
	return f
}

// WithBudgetScope adds the category and month a budget recompute targets.
func (f LogFields) WithBudgetScope(category, month string) LogFields {
	f[FieldCategory] = category
	if month != "" {
		f[FieldMonth] = month
	}
	return f
}

func (f LogFields) WithGoal(goalID string) LogFields {
	f[FieldGoalID] = goalID
	return f
}

// WithChange records an old and new amount in cents.
func (f LogFields) WithChange(oldCents, newCents int64) LogFields {
	f[FieldOldCents] = oldCents
	f[FieldNewCents] = newCents
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
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
