package log

// Common field names for structured logging.
const (
	FieldComponent  = "component"
	FieldOperation  = "operation"
	FieldError      = "error"
	FieldSuccess    = "success"
	FieldDuration   = "duration_ms"
	FieldPeriodID   = "period_id"
	FieldPeriodName = "period_name"
	FieldMemberID   = "member_id"
	FieldMemberName = "member_name"
	FieldItemID     = "item_id"
	FieldItemName   = "item_name"
	FieldAmount     = "amount"
	FieldMealType   = "meal_type"
	FieldQuantity   = "quantity"
	FieldDate       = "date"
	FieldSheetsRef  = "sheets_ref"
)

// Components defines standard component names.
const (
	ComponentApp     = "app"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentCache   = "cache"
	ComponentArchive = "archive"
	ComponentReport  = "report"
	ComponentPosting = "posting"
)

// Operations defines standard operation names.
const (
	OpCreate     = "create"
	OpRead       = "read"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpList       = "list"
	OpDistribute = "distribute"
	OpFinalize   = "finalize"
	OpExport     = "export"
	OpValidate   = "validate"
	OpStartup    = "startup"
	OpShutdown   = "shutdown"
)

// Fields builds key/value pairs for slog calls.
type Fields map[string]any

func NewFields() Fields {
	return make(Fields)
}

func (f Fields) WithComponent(component string) Fields {
	f[FieldComponent] = component
	return f
}

func (f Fields) WithOperation(op string) Fields {
	f[FieldOperation] = op
	return f
}

func (f Fields) WithError(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f Fields) WithPeriod(id int64, name string) Fields {
	f[FieldPeriodID] = id
	f[FieldPeriodName] = name
	return f
}

func (f Fields) WithMember(id int64, name string) Fields {
	f[FieldMemberID] = id
	f[FieldMemberName] = name
	return f
}

// ToSlice converts the fields to the flat slice slog expects.
func (f Fields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
