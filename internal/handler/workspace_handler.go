package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/billing-desk/internal/domain"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/receipt"
	"github.com/cloud-wave-best-zizon/billing-desk/internal/workspace"
)

type WorkspaceHandler struct {
	session *workspace.Session
	printer *receipt.Printer
	logger  *zap.Logger
}

func NewWorkspaceHandler(session *workspace.Session, printer *receipt.Printer, logger *zap.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		session: session,
		printer: printer,
		logger:  logger,
	}
}

func (h *WorkspaceHandler) Register(rg *gin.RouterGroup) {
	ws := rg.Group("/workspace")
	ws.GET("", h.GetWorkspace)
	ws.POST("/bills", h.NewBill)
	ws.DELETE("/bills/:index", h.CloseBill)
	ws.PUT("/active", h.SwitchBill)
	ws.POST("/keys", h.Key)

	bill := ws.Group("/bills/:id")
	bill.PATCH("", h.UpdateCustomer)
	bill.POST("/clear", h.ClearBill)
	bill.PUT("/focus", h.Focus)
	bill.PUT("/rows/:row/search", h.Search)
	bill.PUT("/rows/:row/product", h.SelectProduct)
	bill.PUT("/rows/:row/quantity", h.SetQuantity)
	bill.POST("/customer/blur", h.BlurCustomer)
	bill.PUT("/contact", h.SelectContact)
	bill.POST("/print", h.Print)
	bill.GET("/receipt", h.Receipt)
}

func (h *WorkspaceHandler) GetWorkspace(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.State())
}

func (h *WorkspaceHandler) NewBill(c *gin.Context) {
	c.JSON(http.StatusCreated, h.session.NewBill(c.Request.Context()))
}

func (h *WorkspaceHandler) CloseBill(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, h.session.CloseBill(c.Request.Context(), index))
}

type switchRequest struct {
	Index *int `json:"index"`
}

func (h *WorkspaceHandler) SwitchBill(c *gin.Context) {
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Index == nil {
		badRequest(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, h.session.SwitchBill(c.Request.Context(), *req.Index))
}

type keyRequest struct {
	Key string `json:"key"`
}

func (h *WorkspaceHandler) Key(c *gin.Context) {
	var req keyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		badRequest(c, h.logger, err)
		return
	}
	state, err := h.session.Key(c.Request.Context(), req.Key)
	if err != nil {
		writeError(c, h.logger, err, gin.H{"workspace": state})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *WorkspaceHandler) UpdateCustomer(c *gin.Context) {
	var req workspace.CustomerPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	d, err := h.session.SetCustomer(c.Request.Context(), c.Param("id"), req)
	h.billResult(c, d, err)
}

func (h *WorkspaceHandler) ClearBill(c *gin.Context) {
	d, err := h.session.ClearBill(c.Request.Context(), c.Param("id"))
	h.billResult(c, d, err)
}

func (h *WorkspaceHandler) Focus(c *gin.Context) {
	var req domain.FocusTarget
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	d, err := h.session.Focus(c.Request.Context(), c.Param("id"), req)
	h.billResult(c, d, err)
}

type searchRequest struct {
	Text string `json:"text"`
}

func (h *WorkspaceHandler) Search(c *gin.Context) {
	row, ok := h.row(c)
	if !ok {
		return
	}
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	d, err := h.session.Search(c.Request.Context(), c.Param("id"), row, req.Text)
	h.billResult(c, d, err)
}

type productRequest struct {
	ProductID int `json:"productId"`
}

func (h *WorkspaceHandler) SelectProduct(c *gin.Context) {
	row, ok := h.row(c)
	if !ok {
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	d, err := h.session.SelectProduct(c.Request.Context(), c.Param("id"), row, req.ProductID)
	h.billResult(c, d, err)
}

type quantityRequest struct {
	Quantity string `json:"quantity"`
}

func (h *WorkspaceHandler) SetQuantity(c *gin.Context) {
	row, ok := h.row(c)
	if !ok {
		return
	}
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	d, err := h.session.SetQuantity(c.Request.Context(), c.Param("id"), row, req.Quantity)
	h.billResult(c, d, err)
}

func (h *WorkspaceHandler) BlurCustomer(c *gin.Context) {
	if err := h.session.BlurCustomer(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.logger, err, nil)
		return
	}
	c.Status(http.StatusAccepted)
}

type contactRequest struct {
	Name string `json:"name"`
}

func (h *WorkspaceHandler) SelectContact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	d, err := h.session.SelectContact(c.Request.Context(), c.Param("id"), req.Name)
	h.billResult(c, d, err)
}

func (h *WorkspaceHandler) Print(c *gin.Context) {
	saved, err := h.session.Print(c.Request.Context(), c.Param("id"))
	if err != nil {
		extra := gin.H{}
		if saved != nil {
			extra["bill"] = saved
		}
		writeError(c, h.logger, err, extra)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bill":      saved,
		"workspace": h.session.State(),
	})
}

// Receipt previews the receipt of an open bill as HTML.
func (h *WorkspaceHandler) Receipt(c *gin.Context) {
	b, err := h.session.Receipt(c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err, nil)
		return
	}
	html, err := h.printer.Document(b).HTML()
	if err != nil {
		writeError(c, h.logger, err, nil)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (h *WorkspaceHandler) row(c *gin.Context) (int, bool) {
	row, err := strconv.Atoi(c.Param("row"))
	if err != nil {
		badRequest(c, h.logger, err)
		return 0, false
	}
	return row, true
}

// billResult answers with the stored draft; a warning keeps the draft in
// the body next to the error.
func (h *WorkspaceHandler) billResult(c *gin.Context, d domain.BillDraft, err error) {
	if err != nil {
		extra := gin.H{}
		if d.ID != "" {
			extra["bill"] = d
		}
		writeError(c, h.logger, err, extra)
		return
	}
	c.JSON(http.StatusOK, d)
}
