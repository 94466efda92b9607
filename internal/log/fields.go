package log

// Attribute keys shared by every component.
const (
	FieldComponent        = "component"
	FieldRequestID        = "request_id"
	FieldClientIP         = "client_ip"
	FieldMethod           = "method"
	FieldPath             = "path"
	FieldQuery            = "query"
	FieldStatusCode       = "status_code"
	FieldDuration         = "duration_ms"
	FieldUserAgent        = "user_agent"
	FieldReferer          = "referer"
	FieldSuccess          = "success"
	FieldError            = "error"
	FieldOperation        = "operation"
	FieldCustomerID       = "customer_id"
	FieldTransactionID    = "transaction_id"
	FieldAmount           = "amount"
	FieldPoints           = "points"
	FieldMonthKey         = "month_key"
	FieldMonths           = "months"
	FieldTransactionCount = "transaction_count"
	FieldSkipped          = "skipped"
	FieldBackend          = "backend"
	FieldRef              = "ref"
)

const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentRewards     = "rewards"
	ComponentTransaction = "transaction"
	ComponentStorage     = "storage"
	ComponentAMQP        = "amqp"
	ComponentWorker      = "worker"
	ComponentSheets      = "sheets"
	ComponentRemote      = "remote"
	ComponentCache       = "cache"
	ComponentSecurity    = "security"
	ComponentRateLimit   = "rate_limit"
	ComponentTrace       = "trace"
	ComponentBackend     = "backend"
	ComponentTemplate    = "template"
)

const (
	OpRecord   = "record"
	OpList     = "list"
	OpCompute  = "compute"
	OpSnapshot = "snapshot"
	OpValidate = "validate"
	OpParse    = "parse"
	OpRender   = "render"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// Fields accumulates key/value pairs in insertion order. Later values for
// a key do not replace earlier ones; slog keeps both.
type Fields []any

func NewFields() Fields {
	return make(Fields, 0, 8)
}

func (f Fields) Add(key string, value any) Fields {
	return append(f, key, value)
}

func (f Fields) WithCustomer(customerID string) Fields {
	return f.Add(FieldCustomerID, customerID)
}

func (f Fields) WithTransaction(transactionID, customerID string, amount float64) Fields {
	return f.Add(FieldTransactionID, transactionID).WithCustomer(customerID).Add(FieldAmount, amount)
}

func (f Fields) WithOperation(op string) Fields {
	return f.Add(FieldOperation, op)
}

// WithError records err's message; a nil err adds nothing.
func (f Fields) WithError(err error) Fields {
	if err == nil {
		return f
	}
	return f.Add(FieldError, err.Error())
}

func (f Fields) withRequest(method, path, query, clientIP string) Fields {
	return f.Add(FieldMethod, method).Add(FieldPath, path).Add(FieldQuery, query).Add(FieldClientIP, clientIP)
}

// Get returns the first value stored under key.
func (f Fields) Get(key string) (any, bool) {
	for i := 0; i+1 < len(f); i += 2 {
		if f[i] == key {
			return f[i+1], true
		}
	}
	return nil, false
}

// Args returns the pairs in the form slog's variadic methods take.
func (f Fields) Args() []any {
	return f
}
