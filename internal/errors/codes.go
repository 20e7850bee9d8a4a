package errors

// Error code constants returned in the `error` field of error responses.
// Format: CATEGORY_SPECIFIC_DETAIL. Clients map these to display messages.

const (
	// ==================== Auth (AUTH_) ====================
	AuthUnauthorized       = "AUTH_UNAUTHORIZED"
	AuthInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	AuthTokenExpired       = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid       = "AUTH_TOKEN_INVALID"
	AuthEmailAlreadyExists = "AUTH_EMAIL_EXISTS"

	// ==================== Authorization (AUTHZ_) ====================
	AuthzForbidden    = "AUTHZ_FORBIDDEN"
	AuthzRoleNotFound = "AUTHZ_ROLE_NOT_FOUND"
	AuthzAdminOnly    = "AUTHZ_ADMIN_ONLY"

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID    = "VALIDATION_INVALID_ID"
	ValidationInvalidRange = "VALIDATION_INVALID_RANGE"
	ValidationRequired     = "VALIDATION_REQUIRED"

	// ==================== Catalog (CATALOG_) ====================
	CategoryNotFound      = "CATEGORY_NOT_FOUND"
	CategoryAlreadyExists = "CATEGORY_ALREADY_EXISTS"
	ProductNotFound       = "PRODUCT_NOT_FOUND"
	ProductAlreadyExists  = "PRODUCT_ALREADY_EXISTS"

	// ==================== Cart (CART_) ====================
	CartNotFound      = "CART_NOT_FOUND"
	CartItemNotFound  = "CART_ITEM_NOT_FOUND"
	CartItemsNotFound = "CART_ITEMS_NOT_FOUND"

	// ==================== Orders (ORDER_) ====================
	OrderNotFound      = "ORDER_NOT_FOUND"
	OrdersNotFound     = "ORDERS_NOT_FOUND"
	OrderStateConflict = "ORDER_STATE_CONFLICT"
	OrderInvariant     = "ORDER_INVARIANT_VIOLATION"

	// ==================== Payments (PAYMENT_) ====================
	PaymentGatewayError = "PAYMENT_GATEWAY_ERROR"

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"
)
