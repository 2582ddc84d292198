package redis

import "carpool/internal/service"

// Ensure concrete types implement the service contracts.
var (
	_ service.RideLocker = (*RideLocker)(nil)
	_ service.RideCache  = (*CacheStore)(nil)
)
