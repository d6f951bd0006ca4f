package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	catalogdomain "github.com/lgndcraft2/giving-tree/internal/catalog/domain"
	"github.com/lgndcraft2/giving-tree/pkg/money"
	"github.com/skip2/go-qrcode"
)

const qrCodeSize = 256

type charityResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description string  `json:"description"`
	Website     string  `json:"website"`
	LogoURL     string  `json:"logo_url"`
	ImageURL    string  `json:"image_url"`
	Active      bool    `json:"active"`
	WishLength  *int64  `json:"wish_length,omitempty"`
	CreatedAt   *string `json:"created_at"`
}

type wishResponse struct {
	ID           string  `json:"id"`
	CharityID    string  `json:"charity_id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	UnitPrice    string  `json:"unit_price"`
	Quantity     int64   `json:"quantity"`
	CurrentPrice string  `json:"current_price"`
	TotalPrice   string  `json:"total_price"`
	TargetAmount string  `json:"target_amount"`
	CharityName  string  `json:"charity_name"`
	Fulfilled    bool    `json:"fulfilled"`
	CreatedAt    *string `json:"created_at"`
}

func (s *Server) ListCharities(c *gin.Context) {
	s.listCharities(c, false)
}

// ListCharitiesAdmin also reports how many wishes each charity owns.
func (s *Server) ListCharitiesAdmin(c *gin.Context) {
	s.listCharities(c, true)
}

func (s *Server) listCharities(c *gin.Context, withWishCount bool) {
	summaries, err := s.catalogSvc.ListCharities(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	charities := make([]charityResponse, 0, len(summaries))
	for _, summary := range summaries {
		resp := newCharityResponse(summary.Charity)
		if withWishCount {
			count := summary.WishCount
			resp.WishLength = &count
		}
		charities = append(charities, resp)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "charities": charities})
}

func (s *Server) ListWishes(c *gin.Context) {
	views, err := s.catalogSvc.ListWishes(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	wishes := make([]wishResponse, 0, len(views))
	for _, view := range views {
		wishes = append(wishes, newWishResponse(view))
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "wishes": wishes})
}

// WishQRCode renders a PNG QR code pointing at the public donate page of
// the wish.
func (s *Server) WishQRCode(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || id <= 0 {
		AbortWithError(c, catalogdomain.ErrInvalidID)
		return
	}

	wish, err := s.catalogSvc.FindWishByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	png, err := qrcode.Encode(donateLink(s.cfg.PublicDonateURL, wish.ID), qrcode.Medium, qrCodeSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}

func donateLink(base string, wishID snowflake.ID) string {
	query := url.Values{}
	query.Set("item_id", wishID.String())
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + query.Encode()
}

func (s *Server) CreateCharity(c *gin.Context) {
	var req catalogdomain.CreateCharityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	created, err := s.catalogSvc.CreateCharity(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Charity " + created.Charity.Name + " added successfully",
		"charity": newCharityResponse(created.Charity),
		"wishes":  newWishResponses(created),
	})
}

func (s *Server) EditCharity(c *gin.Context) {
	var req catalogdomain.UpdateCharityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	updated, err := s.catalogSvc.UpdateCharity(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Charity " + updated.Charity.Name + " updated successfully",
		"charity": newCharityResponse(updated.Charity),
		"wishes":  newWishResponses(updated),
	})
}

func (s *Server) ToggleCharityStatus(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || id <= 0 {
		AbortWithError(c, catalogdomain.ErrInvalidID)
		return
	}

	charity, err := s.catalogSvc.ToggleCharityStatus(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := "inactive"
	if charity.Active {
		status = "active"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Charity status changed to " + status,
		"active":  charity.Active,
	})
}

func newCharityResponse(ch catalogdomain.Charity) charityResponse {
	return charityResponse{
		ID:          ch.ID.String(),
		Name:        ch.Name,
		Slug:        ch.Slug,
		Description: ch.Description,
		Website:     ch.Website,
		LogoURL:     ch.LogoURL,
		ImageURL:    ch.ImageURL,
		Active:      ch.Active,
		CreatedAt:   isoTime(ch.CreatedAt),
	}
}

func newWishResponse(view catalogdomain.WishView) wishResponse {
	charityName := view.CharityName
	if charityName == "" {
		charityName = "Unknown Charity"
	}
	return wishResponse{
		ID:           view.ID.String(),
		CharityID:    view.CharityID.String(),
		Name:         view.Name,
		Description:  view.Description,
		UnitPrice:    money.Format(view.UnitPrice),
		Quantity:     view.Quantity,
		CurrentPrice: money.Format(view.CurrentAmount),
		TotalPrice:   view.ListedTotal(),
		TargetAmount: money.Format(view.TargetAmount),
		CharityName:  charityName,
		Fulfilled:    view.Fulfilled,
		CreatedAt:    isoTime(view.CreatedAt),
	}
}

func newWishResponses(result catalogdomain.CharityWithWishes) []wishResponse {
	out := make([]wishResponse, 0, len(result.Wishes))
	for _, w := range result.Wishes {
		out = append(out, newWishResponse(catalogdomain.WishView{Wish: w, CharityName: result.Charity.Name}))
	}
	return out
}

func isoTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	v := t.UTC().Format(time.RFC3339)
	return &v
}
