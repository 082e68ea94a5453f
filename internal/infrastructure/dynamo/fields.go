package dynamo

// DynamoDB attribute names used in key and update expressions.
const (
	fieldPhone      = "phone"
	fieldUserID     = "user_id"
	fieldAttempts   = "attempts"
	fieldConsumedAt = "consumed_at"
	fieldVersion    = "version"
	fieldExpiresTTL = "expires_ttl"
)
