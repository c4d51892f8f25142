package routes

const (
	Health = "/health"

	Properties     = "/api/v1/properties"
	Property       = "/api/v1/properties/{propertyID}"
	PropertyStatus = "/api/v1/properties/{propertyID}/status"
	RentalRecords  = "/api/v1/properties/{propertyID}/rental-records"
	Distributions  = "/api/v1/properties/{propertyID}/distributions"

	Investments  = "/api/v1/investments"
	Withdrawals  = "/api/v1/withdrawals"
	Deposits     = "/api/v1/deposits"
	Portfolio    = "/api/v1/portfolio"
	Transactions = "/api/v1/transactions"
)
