package metrics

const (
	Namespace = "weighted_poll"

	StoreSubsystem = "store"
	APISubsystem   = "api"
)
