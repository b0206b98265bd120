package handler

const (
	errInternalServer       = "Internal server error"
	errRequestNotFound      = "Request not found"
	errScheduleNotFound     = "Schedule not found"
	errMappingNotFound      = "Mapping definition not found"
	errInvalidTimeParameter = "Invalid schedule time parameter"
)
