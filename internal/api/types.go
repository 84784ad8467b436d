package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Role is the account role assigned by the backend.
type Role int

const (
	RoleCustomer Role = iota
	RoleVendor
	RoleAdmin
)

// ParseRole maps the backend's role string to a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "customer":
		// The backend omits the role for legacy accounts.
		return RoleCustomer, nil
	case "vendor":
		return RoleVendor, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return RoleCustomer, fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "customer"
	case RoleVendor:
		return "vendor"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	role, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// Decimal is a monetary amount. The backend serialises decimals either as
// JSON numbers or as quoted strings depending on the endpoint, so both
// encodings are accepted.
type Decimal float64

func (d *Decimal) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid decimal %s: %w", string(data), err)
	}
	*d = Decimal(f)
	return nil
}

func (d Decimal) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(d))
}

// User is the account record returned by the auth endpoints.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      Role   `json:"role"`
}

// LoginRequest carries credentials for POST /api/auth/login/.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the success payload of the login endpoint.
type LoginResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	User         *User  `json:"user,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// RegisterRequest carries the new-account payload. Registration never
// returns tokens; the caller stays anonymous until an explicit login.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// RegisterResponse is the payload of POST /api/auth/register/.
type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// refreshResponse tolerates both key spellings the backend has shipped.
type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	Access       string `json:"access"`
	RefreshToken string `json:"refreshToken"`
	Refresh      string `json:"refresh"`
}

// TokenPair is the normalised result of a refresh. RefreshToken is empty
// when the backend did not rotate it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// VerifyResponse is the payload of GET /api/auth/verify/.
type VerifyResponse struct {
	Success bool  `json:"success"`
	User    *User `json:"user,omitempty"`
}

// ProfileResponse is the payload of PUT /api/auth/profile/.
type ProfileResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	User    *User  `json:"user,omitempty"`
}

// CartItem is a single line in the cart, keyed by the server-assigned
// line id (a UUID, distinct from the product id).
type CartItem struct {
	ID           string    `json:"id"`
	ProductID    int64     `json:"product_id"`
	ProductName  string    `json:"product_name"`
	ProductSlug  string    `json:"product_slug,omitempty"`
	ProductImage string    `json:"product_image,omitempty"`
	VendorName   string    `json:"vendor_name,omitempty"`
	UnitPrice    Decimal   `json:"unit_price"`
	Quantity     int       `json:"quantity"`
	TotalPrice   Decimal   `json:"total_price,omitempty"`
	AddedAt      time.Time `json:"added_at,omitempty"`
}

// CartSummary is the authoritative cart state returned by the backend.
type CartSummary struct {
	Items       []CartItem `json:"items"`
	TotalItems  int        `json:"total_items"`
	Subtotal    Decimal    `json:"subtotal"`
	TotalAmount Decimal    `json:"total_amount"`
}

type addToCartRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// CartMutationResponse is returned by the add/update/remove endpoints.
// CartSummary may be nil when the backend omits it.
type CartMutationResponse struct {
	Message     string       `json:"message"`
	CartSummary *CartSummary `json:"cart_summary"`
}

// CheckoutRequest converts the current cart into an order.
type CheckoutRequest struct {
	PaymentMethod       string `json:"payment_method"`
	ShippingAddress     string `json:"shipping_address"`
	ShippingCity        string `json:"shipping_city"`
	ShippingCountry     string `json:"shipping_country,omitempty"`
	ShippingPhone       string `json:"shipping_phone"`
	Notes               string `json:"notes,omitempty"`
	SpecialInstructions string `json:"special_instructions,omitempty"`
}

// OrderItem is a single purchased line inside an order.
type OrderItem struct {
	ID           string  `json:"id"`
	ProductName  string  `json:"product_name"`
	ProductImage string  `json:"product_image,omitempty"`
	UnitPrice    Decimal `json:"unit_price"`
	Quantity     int     `json:"quantity"`
	TotalPrice   Decimal `json:"total_price"`
	VendorName   string  `json:"vendor_name,omitempty"`
}

// Order is a placed order, keyed by a server-assigned UUID. Checkout
// returns a stub of this; the order endpoints return the full record.
type Order struct {
	ID              string      `json:"id"`
	OrderNumber     string      `json:"order_number"`
	Status          string      `json:"status"`
	TotalAmount     Decimal     `json:"total_amount"`
	Subtotal        Decimal     `json:"subtotal,omitempty"`
	TaxAmount       Decimal     `json:"tax_amount,omitempty"`
	ShippingFee     Decimal     `json:"shipping_fee,omitempty"`
	PaymentMethod   string      `json:"payment_method,omitempty"`
	PaymentStatus   string      `json:"payment_status,omitempty"`
	ShippingAddress string      `json:"shipping_address,omitempty"`
	ShippingCity    string      `json:"shipping_city,omitempty"`
	ShippingCountry string      `json:"shipping_country,omitempty"`
	ShippingPhone   string      `json:"shipping_phone,omitempty"`
	TrackingNumber  string      `json:"tracking_number,omitempty"`
	TotalItems      int         `json:"total_items,omitempty"`
	ItemsCount      int         `json:"items_count,omitempty"`
	Items           []OrderItem `json:"items,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at,omitempty"`
}

// OrderPage is the paginated order listing.
type OrderPage struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []Order `json:"results"`
}

// OrderStats is the customer purchase summary.
type OrderStats struct {
	Stats struct {
		TotalOrders   int     `json:"total_orders"`
		TotalSpent    Decimal `json:"total_spent"`
		AvgOrderValue Decimal `json:"avg_order_value"`
	} `json:"stats"`
	StatusBreakdown []OrderStatusCount `json:"status_breakdown"`
}

// OrderStatusCount is one bucket of the status breakdown.
type OrderStatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// CheckoutResponse is the payload of POST /api/cart/checkout/.
type CheckoutResponse struct {
	Message string `json:"message"`
	Order   *Order `json:"order"`
}

// Category groups products in the catalog.
type Category struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Description  string `json:"description,omitempty"`
	ProductCount int    `json:"product_count"`
}

// Product is a catalog entry. Vendor contact fields are only populated
// for authenticated requests.
type Product struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Category      *Category `json:"category,omitempty"`
	Price         Decimal   `json:"price"`
	StockQuantity int       `json:"stock_quantity"`
	InStock       bool      `json:"in_stock"`
	IsAvailable   bool      `json:"is_available"`
	Image         string    `json:"image,omitempty"`
	Slug          string    `json:"slug"`
	Featured      bool      `json:"featured"`
	VendorName    string    `json:"vendor_name,omitempty"`
	VendorPhone   string    `json:"vendor_phone,omitempty"`
}

// ProductPage is the paginated catalog listing.
type ProductPage struct {
	Count    int       `json:"count"`
	Next     *string   `json:"next"`
	Previous *string   `json:"previous"`
	Results  []Product `json:"results"`
}
