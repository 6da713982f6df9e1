package api

const (
	endpointSession    = "/session"
	endpointCategories = "/categories"
	endpointLanguages  = "/languages"
	endpointChat       = "/chat/%s" // POST, category path-escaped
	endpointHealth     = "/health"

	endpointLogin          = "/auth/login"
	endpointSignup         = "/auth/signup"
	endpointLogout         = "/auth/logout"
	endpointValidate       = "/auth/validate"
	endpointResetPassword  = "/auth/reset-password"
	endpointUpdatePassword = "/auth/update-password"
)
