package flow

// Property keys shared by the lowering pass and consumers of the graph.
const (
	KeyVariable      = "variable"
	KeyType          = "type"
	KeyExpression    = "expression"
	KeyCondition     = "condition"
	KeyCollection    = "collection"
	KeyCheckError    = "checkError"
	KeyConnection    = "connection"
	KeyScope         = "scope"
	KeyRetryCount    = "retryCount"
	KeyRetryManager  = "retryManager"
	KeyErrorVariable = "errorVariable"
	KeyErrorType     = "errorType"
	KeyComment       = "comment"
	KeyPatterns      = "patterns"
	KeyGuard         = "guard"
	KeyFutures       = "futures"
	KeyWaitAll       = "waitAll"
	KeyResourcePath  = "resourcePath"
	KeyWorkerName    = "workerName"

	// KeyAdditionalArguments holds positional arguments that no parameter
	// accepts.
	KeyAdditionalArguments = "additionalArguments"
)

// Metadata data keys
const (
	DataAgent = "agent"
)
