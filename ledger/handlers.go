package ledger

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

// PaymentView is a ledger row with lateness derived against its schedule.
type PaymentView struct {
	models.Payment
	Late         bool    `json:"late"`
	MemberName   string  `json:"member_name,omitempty"`
	ScheduleName *string `json:"schedule_name"`
}

type MemberLedger struct {
	Member    *models.Member  `json:"member"`
	Payments  []PaymentView   `json:"payments"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	Balance   decimal.Decimal `json:"balance"`
}

type MemberBalance struct {
	MemberId      int             `json:"member_id"`
	Name          string          `json:"name"`
	Section       string          `json:"section"`
	TuitionAmount decimal.Decimal `json:"tuition_amount"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	Balance       decimal.Decimal `json:"balance"`
	LateCount     int             `json:"late_count"`
}

type assignRequest struct {
	MemberId          int   `json:"member_id"`
	PaymentScheduleId *int  `json:"payment_schedule_id"`
	IsLate            *bool `json:"is_late"`
}

func RegisterRoutes(rg *gin.RouterGroup) {
	viewer := middlewares.RequireRole(models.UserRoleViewer)
	staff := middlewares.RequireRole(models.UserRoleStaff)
	admin := middlewares.RequireRole(models.UserRoleAdmin)

	rg.GET("/unmatched-payments", viewer, listUnmatchedHandler())
	rg.POST("/unmatched-payments", staff, createUnmatchedHandler())
	rg.POST("/unmatched-payments/:id/assign", staff, assignHandler())
	rg.POST("/payments/:id/unassign", staff, unassignHandler())
	rg.GET("/payments", viewer, seasonPaymentsHandler())
	rg.GET("/members/:id/ledger", viewer, memberLedgerHandler())
	rg.GET("/seasons/:season/balances", viewer, seasonBalancesHandler())

	rg.GET("/payment-schedules", viewer, listSchedulesHandler())
	rg.POST("/payment-schedules", admin, createScheduleHandler())
	rg.PUT("/payment-schedules/:id", admin, updateScheduleHandler())
	rg.DELETE("/payment-schedules/:id", admin, deleteScheduleHandler())
}

func respondError(c *gin.Context, funcName string, err error) {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrPaymentNotActive),
		errors.Is(err, models.ErrPaymentLocked),
		errors.Is(err, models.ErrDuplicatePayment),
		errors.Is(err, models.ErrScheduleInUse):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &validationErrors):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)})
	default:
		config.LogError(config.GetLogger(), "ledger", funcName, "request failed", c.Request.URL.Path, err)
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

// buildViews resolves members and schedules in two batched loads.
func buildViews(c *gin.Context, payments []*models.Payment, withMember bool) ([]PaymentView, error) {
	ctx := c.Request.Context()
	scheduleIds := make([]int, 0, len(payments))
	for _, p := range payments {
		if p.PaymentScheduleId != nil {
			scheduleIds = append(scheduleIds, *p.PaymentScheduleId)
		}
	}
	scheduleIds = utils.UniqueSlice(scheduleIds)
	schedules := make(map[int]*models.PaymentSchedule, len(scheduleIds))
	if len(scheduleIds) > 0 {
		loaded, errs := middlewares.GetPaymentSchedules(ctx, scheduleIds)
		for i, s := range loaded {
			if len(errs) > i && errs[i] != nil {
				return nil, errs[i]
			}
			if s != nil {
				schedules[scheduleIds[i]] = s
			}
		}
	}

	members := map[int]*models.Member{}
	if withMember {
		memberIds := make([]int, 0, len(payments))
		for _, p := range payments {
			memberIds = append(memberIds, p.MemberId)
		}
		memberIds = utils.UniqueSlice(memberIds)
		if len(memberIds) > 0 {
			loaded, errs := middlewares.GetMembers(ctx, memberIds)
			for i, m := range loaded {
				if len(errs) > i && errs[i] != nil {
					return nil, errs[i]
				}
				if m != nil {
					members[memberIds[i]] = m
				}
			}
		}
	}

	views := make([]PaymentView, 0, len(payments))
	for _, p := range payments {
		var schedule *models.PaymentSchedule
		if p.PaymentScheduleId != nil {
			schedule = schedules[*p.PaymentScheduleId]
		}
		view := PaymentView{Payment: *p, Late: p.DerivedLate(schedule)}
		if schedule != nil {
			view.ScheduleName = &schedule.Name
		}
		if m := members[p.MemberId]; m != nil {
			view.MemberName = m.FullName()
		}
		views = append(views, view)
	}
	return views, nil
}

func listUnmatchedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := models.ListUnmatchedPayments(c.Request.Context())
		if err != nil {
			respondError(c, "listUnmatchedHandler", err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func createUnmatchedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUnmatchedPayment
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		input.Source = models.UnmatchedSourceManual
		payment, err := models.CreateUnmatchedPayment(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createUnmatchedHandler", err)
			return
		}
		c.JSON(http.StatusCreated, payment)
	}
}

func assignHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req assignRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.MemberId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "member_id is required"})
			return
		}
		payment, err := models.AssignUnmatchedPayment(c.Request.Context(), models.AssignPaymentInput{
			UnmatchedPaymentId: id,
			MemberId:           req.MemberId,
			PaymentScheduleId:  req.PaymentScheduleId,
			IsLate:             req.IsLate,
		})
		if err != nil {
			respondError(c, "assignHandler", err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func unassignHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		unmatched, err := models.UnassignPayment(c.Request.Context(), id)
		if err != nil {
			respondError(c, "unassignHandler", err)
			return
		}
		c.JSON(http.StatusOK, unmatched)
	}
}

func seasonPaymentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		season := c.DefaultQuery("season", config.DefaultSeason())
		payments, err := models.ListSeasonPayments(c.Request.Context(), season)
		if err != nil {
			respondError(c, "seasonPaymentsHandler", err)
			return
		}
		views, err := buildViews(c, payments, true)
		if err != nil {
			respondError(c, "seasonPaymentsHandler", err)
			return
		}
		c.JSON(http.StatusOK, views)
	}
}

func memberLedgerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		member, err := models.GetMember(ctx, id)
		if err != nil {
			respondError(c, "memberLedgerHandler", err)
			return
		}
		payments, err := models.ListMemberPayments(ctx, id, c.Query("includeInactive") == "true")
		if err != nil {
			respondError(c, "memberLedgerHandler", err)
			return
		}
		views, err := buildViews(c, payments, false)
		if err != nil {
			respondError(c, "memberLedgerHandler", err)
			return
		}
		total := decimal.Zero
		for _, p := range payments {
			if p.Active() {
				total = total.Add(p.Amount)
			}
		}
		c.JSON(http.StatusOK, MemberLedger{
			Member:    member,
			Payments:  views,
			TotalPaid: total,
			Balance:   member.TuitionAmount.Sub(total),
		})
	}
}

func seasonBalancesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		members, err := models.ListMembers(ctx, models.MemberFilter{Season: c.Param("season")})
		if err != nil {
			respondError(c, "seasonBalancesHandler", err)
			return
		}
		ids := make([]int, 0, len(members))
		for _, m := range members {
			ids = append(ids, m.ID)
		}
		paymentsByMember := make([][]*models.Payment, len(members))
		if len(ids) > 0 {
			loaded, errs := middlewares.GetMembersPayments(ctx, ids)
			for i := range loaded {
				if len(errs) > i && errs[i] != nil {
					respondError(c, "seasonBalancesHandler", errs[i])
					return
				}
			}
			paymentsByMember = loaded
		}

		var all []*models.Payment
		for _, ps := range paymentsByMember {
			all = append(all, ps...)
		}
		views, err := buildViews(c, all, false)
		if err != nil {
			respondError(c, "seasonBalancesHandler", err)
			return
		}
		lateByMember := map[int]int{}
		for _, v := range views {
			if v.Late {
				lateByMember[v.MemberId]++
			}
		}

		out := make([]MemberBalance, 0, len(members))
		for i, m := range members {
			total := decimal.Zero
			for _, p := range paymentsByMember[i] {
				total = total.Add(p.Amount)
			}
			out = append(out, MemberBalance{
				MemberId:      m.ID,
				Name:          m.FullName(),
				Section:       m.Section,
				TuitionAmount: m.TuitionAmount,
				TotalPaid:     total,
				Balance:       m.TuitionAmount.Sub(total),
				LateCount:     lateByMember[m.ID],
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

func listSchedulesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := models.ListPaymentSchedules(c.Request.Context(), c.Query("season"))
		if err != nil {
			respondError(c, "listSchedulesHandler", err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func createScheduleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPaymentSchedule
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		schedule, err := models.CreatePaymentSchedule(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "createScheduleHandler", err)
			return
		}
		c.JSON(http.StatusCreated, schedule)
	}
}

func updateScheduleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewPaymentSchedule
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		schedule, err := models.UpdatePaymentSchedule(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "updateScheduleHandler", err)
			return
		}
		c.JSON(http.StatusOK, schedule)
	}
}

func deleteScheduleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		schedule, err := models.DeletePaymentSchedule(c.Request.Context(), id)
		if err != nil {
			respondError(c, "deleteScheduleHandler", err)
			return
		}
		c.JSON(http.StatusOK, schedule)
	}
}
