package roster

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stageworks/roster_backend/config"
	"github.com/stageworks/roster_backend/middlewares"
	"github.com/stageworks/roster_backend/models"
	"github.com/stageworks/roster_backend/utils"
)

type tuitionRequest struct {
	TuitionAmount *decimal.Decimal `json:"tuition_amount"`
}

// MemberResponse adds the age derived from the birthday at response time.
type MemberResponse struct {
	*models.Member
	CurrentAge *int `json:"current_age"`
}

func RegisterRoutes(rg *gin.RouterGroup) {
	viewer := middlewares.RequireRole(models.UserRoleViewer)
	staff := middlewares.RequireRole(models.UserRoleStaff)
	admin := middlewares.RequireRole(models.UserRoleAdmin)

	rg.GET("/members", viewer, listMembersHandler())
	rg.GET("/members/export", viewer, exportHandler())
	rg.GET("/members/:id", viewer, getMemberHandler())
	rg.POST("/members", staff, createMemberHandler())
	rg.PUT("/members/:id", staff, updateMemberHandler())
	rg.PATCH("/members/:id/tuition", staff, updateTuitionHandler())
	rg.DELETE("/members/:id", admin, deleteMemberHandler())

	registerUserRoutes(rg)
}

func respondError(c *gin.Context, funcName string, err error) {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrDuplicateEmail), errors.Is(err, models.ErrMemberHasPayments), errors.Is(err, models.ErrDuplicateUser):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidUserRole), errors.Is(err, models.ErrNegativeTuition), errors.Is(err, models.ErrInvalidPhone),
		errors.Is(err, utils.ErrPasswordTooShort):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &validationErrors):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)})
	default:
		config.LogError(config.GetLogger(), "roster", funcName, "request failed", c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func toMemberResponse(m *models.Member) MemberResponse {
	return MemberResponse{Member: m, CurrentAge: m.CurrentAge(timeNow())}
}

func listMembersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		offset, _ := strconv.Atoi(c.Query("offset"))
		members, err := models.ListMembers(c.Request.Context(), models.MemberFilter{
			Season:  c.Query("season"),
			Section: c.Query("section"),
			Source:  c.Query("source"),
			Search:  c.Query("search"),
			Limit:   limit,
			Offset:  offset,
		})
		if err != nil {
			respondError(c, "listMembersHandler", err)
			return
		}
		out := make([]MemberResponse, 0, len(members))
		for _, m := range members {
			out = append(out, toMemberResponse(m))
		}
		c.JSON(http.StatusOK, out)
	}
}

func getMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		member, err := middlewares.GetMember(c.Request.Context(), id)
		if err != nil {
			respondError(c, "getMemberHandler", err)
			return
		}
		if member == nil {
			respondError(c, "getMemberHandler", utils.ErrorRecordNotFound)
			return
		}
		c.JSON(http.StatusOK, toMemberResponse(member))
	}
}

func createMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewMember
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		member, err := models.CreateMember(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createMemberHandler", err)
			return
		}
		c.JSON(http.StatusCreated, toMemberResponse(member))
	}
}

func updateMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewMember
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		member, err := models.UpdateMember(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "updateMemberHandler", err)
			return
		}
		c.JSON(http.StatusOK, toMemberResponse(member))
	}
}

func updateTuitionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req tuitionRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.TuitionAmount == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tuition_amount is required"})
			return
		}
		member, err := models.UpdateMemberTuition(c.Request.Context(), id, *req.TuitionAmount)
		if err != nil {
			respondError(c, "updateTuitionHandler", err)
			return
		}
		c.JSON(http.StatusOK, toMemberResponse(member))
	}
}

func deleteMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		member, err := models.DeleteMember(c.Request.Context(), id)
		if err != nil {
			respondError(c, "deleteMemberHandler", err)
			return
		}
		c.JSON(http.StatusOK, toMemberResponse(member))
	}
}
