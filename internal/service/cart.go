package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/food_order/internal/domain"
	"github.com/Skotchmaster/food_order/internal/hash"
	"github.com/Skotchmaster/food_order/internal/models"
	"github.com/Skotchmaster/food_order/internal/repo"
	"github.com/Skotchmaster/food_order/internal/settings"
)

type CartService struct {
	Repo     *repo.GormRepo
	Settings *settings.Cache
	Hasher   *hash.TokenHasher
	MaxItems int
}

type CartLine struct {
	models.CartItem
	LineTotal decimal.Decimal `json:"line_total"`
}

// CartView is what the cart endpoints return. IssuedToken is set when the
// caller must store a new cart token cookie.
type CartView struct {
	ID            uuid.UUID       `json:"id"`
	Lines         []CartLine      `json:"items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalQuantity int             `json:"total_quantity"`
	CouponCode    *string         `json:"coupon_code,omitempty"`
	Skipped       []string        `json:"skipped,omitempty"`
	IssuedToken   string          `json:"-"`
}

type AddItemInput struct {
	ProductItemID        uuid.UUID   `json:"product_item_id"`
	AddedIngredientIDs   []uuid.UUID `json:"added_ingredient_ids"`
	RemovedIngredientIDs []string    `json:"removed_ingredient_ids"`
}

func newCartView(cart *models.Cart) *CartView {
	v := &CartView{
		ID:          cart.ID,
		Lines:       make([]CartLine, 0, len(cart.Items)),
		TotalAmount: cart.TotalAmount,
		CouponCode:  cart.CouponCode,
	}
	lines := repo.CartLines(cart.Items)
	for i, it := range cart.Items {
		v.Lines = append(v.Lines, CartLine{CartItem: it, LineTotal: lines[i].Total()})
		v.TotalQuantity += it.Quantity
	}
	return v
}

func (s *CartService) maxItems(ctx context.Context) int {
	n := s.Settings.Int(ctx, settings.KeyMaxCartItems, s.MaxItems)
	if n <= 0 {
		return s.MaxItems
	}
	return n
}

// findCart resolves the caller's cart without creating one: the user's cart
// first, then the cart behind the guest token. It returns nil when neither
// exists.
func (s *CartService) findCart(ctx context.Context, id Identity) (*models.Cart, error) {
	if id.UserID != nil {
		cart, err := s.Repo.FindCartByUser(ctx, *id.UserID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if id.CartToken == "" {
		return nil, nil
	}
	cart, err := s.Repo.FindCartByTokenDigest(ctx, s.Hasher.Digest(id.CartToken))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if cart.UserID != nil && (id.UserID == nil || *cart.UserID != *id.UserID) {
		// the token was realigned to someone's account cart
		return nil, nil
	}
	return cart, nil
}

// GetCurrentCart returns the caller's cart, or an empty view when there is
// none. A signed-in user whose token does not point at their cart gets a
// fresh token bound to it.
func (s *CartService) GetCurrentCart(ctx context.Context, id Identity) (*CartView, error) {
	cart, err := s.findCart(ctx, id)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return &CartView{Lines: []CartLine{}, TotalAmount: decimal.Zero}, nil
	}

	issued := ""
	if cart.UserID != nil && !s.tokenMatches(cart, id.CartToken) {
		if issued, err = s.bindNewToken(ctx, cart.ID); err != nil {
			return nil, err
		}
	}

	view, err := s.loadView(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	view.IssuedToken = issued
	return view, nil
}

func (s *CartService) tokenMatches(cart *models.Cart, token string) bool {
	return token != "" && cart.TokenDigest != nil && *cart.TokenDigest == s.Hasher.Digest(token)
}

func (s *CartService) bindNewToken(ctx context.Context, cartID uuid.UUID) (string, error) {
	token, err := hash.NewToken()
	if err != nil {
		return "", err
	}
	digest := s.Hasher.Digest(token)
	if err := s.Repo.SetCartTokenDigest(ctx, cartID, &digest); err != nil {
		return "", fmt.Errorf("bind cart token: %w", err)
	}
	return token, nil
}

func (s *CartService) loadView(ctx context.Context, cartID uuid.UUID) (*CartView, error) {
	cart, err := s.Repo.FindCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	items, err := s.Repo.LoadCartItems(ctx, cartID)
	if err != nil {
		return nil, err
	}
	cart.Items = items
	return newCartView(cart), nil
}

// GetOrCreateCart returns the caller's cart, creating it when missing. For
// a new guest cart the raw token is returned once; only its digest is kept.
func (s *CartService) GetOrCreateCart(ctx context.Context, id Identity) (*models.Cart, string, error) {
	cart, err := s.findCart(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if cart != nil {
		return cart, "", nil
	}

	token, err := hash.NewToken()
	if err != nil {
		return nil, "", err
	}
	digest := s.Hasher.Digest(token)
	cart = &models.Cart{UserID: id.UserID, TokenDigest: &digest, TotalAmount: decimal.Zero}

	err = s.Repo.CreateCart(ctx, cart)
	if errors.Is(err, gorm.ErrDuplicatedKey) && id.UserID != nil {
		// a concurrent request created the user's cart first
		cart, err = s.Repo.FindCartByUser(ctx, *id.UserID)
		if err != nil {
			return nil, "", err
		}
		return cart, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("create cart: %w", err)
	}
	return cart, token, nil
}

// AddItem adds one unit of a configured product. A line with the same
// configuration key is incremented instead of duplicated.
func (s *CartService) AddItem(ctx context.Context, id Identity, in AddItemInput) (*CartView, error) {
	if in.ProductItemID == uuid.Nil {
		return nil, fmt.Errorf("%w: product_item_id is required", ErrValidation)
	}
	limit := s.maxItems(ctx)

	product, err := s.Repo.FindProductItem(ctx, in.ProductItemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: product", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !product.Available {
		return nil, fmt.Errorf("%w: %s is not available", ErrValidation, product.ProductName)
	}

	addedIDs := compactIDs(in.AddedIngredientIDs)
	added, err := s.Repo.FindIngredients(ctx, addedIDs)
	if err != nil {
		return nil, err
	}
	if len(added) != len(addedIDs) {
		return nil, fmt.Errorf("%w: unknown ingredient", ErrValidation)
	}
	removed := compactStrings(in.RemovedIngredientIDs)

	cart, issued, err := s.GetOrCreateCart(ctx, id)
	if err != nil {
		return nil, err
	}

	item := models.CartItem{
		ProductItemID:        product.ID,
		Quantity:             1,
		AddedIngredients:     added,
		RemovedIngredientIDs: pq.StringArray(removed),
	}
	item.ConfigKey = domain.LineConfigurationKey(product.ID.String(), item.AddedIDs(), removed)

	var updated *models.Cart
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if _, err := tx.LockCart(ctx, cart.ID); err != nil {
			return err
		}
		total, err := tx.CartQuantity(ctx, cart.ID)
		if err != nil {
			return err
		}
		if total+1 > limit {
			return &CartLimitError{Max: limit}
		}

		existing, err := tx.FindCartItemByKey(ctx, cart.ID, item.ConfigKey)
		switch {
		case err == nil:
			err = tx.SetCartItemQuantity(ctx, existing.ID, existing.Quantity+1)
		case errors.Is(err, gorm.ErrRecordNotFound):
			item.CartID = cart.ID
			err = tx.InsertCartItem(ctx, &item)
		}
		if err != nil {
			return err
		}

		updated, err = tx.RecalculateCart(ctx, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	view := newCartView(updated)
	view.IssuedToken = issued
	return view, nil
}

// SetItemQuantity sets a line's quantity; zero removes the line.
func (s *CartService) SetItemQuantity(ctx context.Context, id Identity, itemID uuid.UUID, quantity int) (*CartView, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrValidation)
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, id, itemID)
	}
	limit := s.maxItems(ctx)

	return s.mutate(ctx, id, func(tx *repo.GormRepo, cart *models.Cart) error {
		item, err := tx.FindCartItem(ctx, cart.ID, itemID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: cart item", ErrNotFound)
		}
		if err != nil {
			return err
		}
		if quantity > item.Quantity {
			total, err := tx.CartQuantity(ctx, cart.ID)
			if err != nil {
				return err
			}
			if quantity > limit || quantity-item.Quantity > limit-total {
				return &CartLimitError{Max: limit}
			}
		}
		return tx.SetCartItemQuantity(ctx, item.ID, quantity)
	})
}

func (s *CartService) RemoveItem(ctx context.Context, id Identity, itemID uuid.UUID) (*CartView, error) {
	return s.mutate(ctx, id, func(tx *repo.GormRepo, cart *models.Cart) error {
		item, err := tx.FindCartItem(ctx, cart.ID, itemID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: cart item", ErrNotFound)
		}
		if err != nil {
			return err
		}
		return tx.DeleteCartItem(ctx, item.ID)
	})
}

func (s *CartService) ApplyCoupon(ctx context.Context, id Identity, code string) (*CartView, error) {
	coupon, err := s.Repo.FindCouponByCode(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: unknown coupon", ErrValidation)
	}
	if err != nil {
		return nil, err
	}
	if !coupon.Usable(time.Now().UTC()) {
		return nil, fmt.Errorf("%w: coupon %s is not active", ErrValidation, coupon.Code)
	}

	return s.mutate(ctx, id, func(tx *repo.GormRepo, cart *models.Cart) error {
		return tx.SetCartCoupon(ctx, cart.ID, &coupon.Code)
	})
}

func (s *CartService) RemoveCoupon(ctx context.Context, id Identity) (*CartView, error) {
	return s.mutate(ctx, id, func(tx *repo.GormRepo, cart *models.Cart) error {
		return tx.SetCartCoupon(ctx, cart.ID, nil)
	})
}

// mutate locks the caller's existing cart, applies fn and recalculates the
// total in the same transaction.
func (s *CartService) mutate(ctx context.Context, id Identity, fn func(tx *repo.GormRepo, cart *models.Cart) error) (*CartView, error) {
	cart, err := s.findCart(ctx, id)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("%w: cart", ErrNotFound)
	}

	var updated *models.Cart
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		locked, err := tx.LockCart(ctx, cart.ID)
		if err != nil {
			return err
		}
		if err := fn(tx, locked); err != nil {
			return err
		}
		updated, err = tx.RecalculateCart(ctx, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return newCartView(updated), nil
}

// MergeGuestCart moves the guest token's cart into the signed-in user's
// cart. Lines with equal configuration keys add up. When the result would
// exceed the item limit nothing changes. The token ends up bound to the
// user's cart.
func (s *CartService) MergeGuestCart(ctx context.Context, id Identity) (*CartView, error) {
	if id.UserID == nil {
		return nil, fmt.Errorf("%w: sign in to merge carts", ErrForbidden)
	}
	if id.CartToken == "" {
		return s.GetCurrentCart(ctx, id)
	}

	digest := s.Hasher.Digest(id.CartToken)
	guest, err := s.Repo.FindCartByTokenDigest(ctx, digest)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.GetCurrentCart(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	if guest.UserID != nil {
		return s.GetCurrentCart(ctx, Identity{UserID: id.UserID, CartToken: id.CartToken})
	}

	limit := s.maxItems(ctx)
	userCart, _, err := s.GetOrCreateCart(ctx, Identity{UserID: id.UserID})
	if err != nil {
		return nil, err
	}

	var updated *models.Cart
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		ids := []uuid.UUID{guest.ID, userCart.ID}
		slices.SortFunc(ids, compareUUID)
		locked := make(map[uuid.UUID]*models.Cart, 2)
		for _, cid := range ids {
			c, err := tx.LockCart(ctx, cid)
			if err != nil {
				return err
			}
			locked[cid] = c
		}

		guestItems, err := tx.LoadCartItems(ctx, guest.ID)
		if err != nil {
			return err
		}
		userQty, err := tx.CartQuantity(ctx, userCart.ID)
		if err != nil {
			return err
		}
		guestQty := 0
		for _, it := range guestItems {
			guestQty += it.Quantity
		}
		if userQty+guestQty > limit {
			return &CartLimitError{Max: limit}
		}

		for _, it := range guestItems {
			existing, err := tx.FindCartItemByKey(ctx, userCart.ID, it.ConfigKey)
			switch {
			case err == nil:
				if err := tx.SetCartItemQuantity(ctx, existing.ID, existing.Quantity+it.Quantity); err != nil {
					return err
				}
				if err := tx.DeleteCartItem(ctx, it.ID); err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.MoveCartItem(ctx, it.ID, userCart.ID); err != nil {
					return err
				}
			default:
				return err
			}
		}

		if locked[userCart.ID].CouponCode == nil && locked[guest.ID].CouponCode != nil {
			if err := tx.SetCartCoupon(ctx, userCart.ID, locked[guest.ID].CouponCode); err != nil {
				return err
			}
		}
		if err := tx.DeleteCart(ctx, guest.ID); err != nil {
			return err
		}
		if err := tx.SetCartTokenDigest(ctx, userCart.ID, &digest); err != nil {
			return err
		}

		updated, err = tx.RecalculateCart(ctx, userCart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return newCartView(updated), nil
}

// Reorder copies the lines of a past order into the user's cart at current
// prices. Lines whose product or ingredients are gone are skipped and
// reported by name.
func (s *CartService) Reorder(ctx context.Context, id Identity, orderID uuid.UUID) (*CartView, error) {
	if id.UserID == nil {
		return nil, fmt.Errorf("%w: sign in to reorder", ErrForbidden)
	}
	order, err := s.Repo.FindOrder(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && (order.UserID == nil || *order.UserID != *id.UserID)) {
		return nil, fmt.Errorf("%w: order", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	limit := s.maxItems(ctx)

	var (
		items   []models.CartItem
		skipped []string
		need    int
	)
	for _, line := range order.Lines {
		item, ok, err := s.reorderItem(ctx, line)
		if err != nil {
			return nil, err
		}
		if !ok {
			skipped = append(skipped, line.ProductName)
			continue
		}
		items = append(items, item)
		need += item.Quantity
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: none of the order's items are available", ErrValidation)
	}

	cart, issued, err := s.GetOrCreateCart(ctx, Identity{UserID: id.UserID})
	if err != nil {
		return nil, err
	}

	var updated *models.Cart
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if _, err := tx.LockCart(ctx, cart.ID); err != nil {
			return err
		}
		total, err := tx.CartQuantity(ctx, cart.ID)
		if err != nil {
			return err
		}
		if total+need > limit {
			return &CartLimitError{Max: limit}
		}

		for i := range items {
			item := items[i]
			existing, err := tx.FindCartItemByKey(ctx, cart.ID, item.ConfigKey)
			switch {
			case err == nil:
				err = tx.SetCartItemQuantity(ctx, existing.ID, existing.Quantity+item.Quantity)
			case errors.Is(err, gorm.ErrRecordNotFound):
				item.CartID = cart.ID
				err = tx.InsertCartItem(ctx, &item)
			}
			if err != nil {
				return err
			}
		}

		updated, err = tx.RecalculateCart(ctx, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	view := newCartView(updated)
	view.Skipped = skipped
	view.IssuedToken = issued
	return view, nil
}

func (s *CartService) reorderItem(ctx context.Context, line domain.LineItem) (models.CartItem, bool, error) {
	productID, err := uuid.Parse(line.VariantID)
	if err != nil {
		return models.CartItem{}, false, nil
	}
	product, err := s.Repo.FindProductItem(ctx, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.CartItem{}, false, nil
	}
	if err != nil {
		return models.CartItem{}, false, err
	}
	if !product.Available {
		return models.CartItem{}, false, nil
	}

	var addedIDs []uuid.UUID
	for _, raw := range line.AddedIDs() {
		aid, err := uuid.Parse(raw)
		if err != nil {
			return models.CartItem{}, false, nil
		}
		addedIDs = append(addedIDs, aid)
	}
	addedIDs = compactIDs(addedIDs)
	added, err := s.Repo.FindIngredients(ctx, addedIDs)
	if err != nil {
		return models.CartItem{}, false, err
	}
	if len(added) != len(addedIDs) {
		return models.CartItem{}, false, nil
	}

	removed := compactStrings(line.RemovedIDs())
	item := models.CartItem{
		ProductItemID:        product.ID,
		Quantity:             line.Quantity,
		AddedIngredients:     added,
		RemovedIngredientIDs: pq.StringArray(removed),
	}
	item.ConfigKey = domain.LineConfigurationKey(product.ID.String(), item.AddedIDs(), removed)
	return item, true, nil
}

func compactIDs(ids []uuid.UUID) []uuid.UUID {
	out := slices.Clone(ids)
	out = slices.DeleteFunc(out, func(id uuid.UUID) bool { return id == uuid.Nil })
	slices.SortFunc(out, compareUUID)
	return slices.Compact(out)
}

func compactStrings(ids []string) []string {
	out := slices.Clone(ids)
	out = slices.DeleteFunc(out, func(s string) bool { return s == "" })
	slices.Sort(out)
	return slices.Compact(out)
}

func compareUUID(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}
