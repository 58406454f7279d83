package credits

const (
	operationSetBalance = "set_balance"
	operationAdd        = "add"
	operationDeduct     = "deduct"
	operationGrant      = "grant"

	operationStatusOK    = "ok"
	operationStatusError = "error"
)
