package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deletexiumu/screen-analyzer/db"
	"github.com/deletexiumu/screen-analyzer/errs"
	"github.com/deletexiumu/screen-analyzer/models"
)

// parseDayParam turns a YYYY-MM-DD path segment into the UTC millisecond
// half-open window [dayStartMs, dayEndMs) every day-scoped query uses.
func parseDayParam(c *gin.Context, date string) (dayStartMs, dayEndMs int64, ok bool) {
	t, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		respondBadRequest(c, "date must be YYYY-MM-DD")
		return 0, 0, false
	}
	dayStartMs = t.UnixMilli()
	dayEndMs = t.AddDate(0, 0, 1).UnixMilli()
	return dayStartMs, dayEndMs, true
}

// GetActivities handles GET /api/activities, behind get_activities(range).
// Query params: start, end (YYYY-MM-DD, inclusive range; end defaults to
// start). Returns one DayActivity roll-up per day in the range, at most 92
// days; there is no category filter.
func (h *Handlers) GetActivities(c *gin.Context) {
	startDate := c.Query("start")
	endDate := c.DefaultQuery("end", startDate)
	if startDate == "" {
		respondBadRequest(c, "start is required")
		return
	}

	start, err := time.ParseInLocation("2006-01-02", startDate, time.UTC)
	if err != nil {
		respondBadRequest(c, "start must be YYYY-MM-DD")
		return
	}
	end, err := time.ParseInLocation("2006-01-02", endDate, time.UTC)
	if err != nil {
		respondBadRequest(c, "end must be YYYY-MM-DD")
		return
	}
	if end.Before(start) {
		respondBadRequest(c, "end must not be before start")
		return
	}

	const maxRangeDays = 92
	var out []*models.DayActivity
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if len(out) >= maxRangeDays {
			break
		}
		dayStartMs := d.UnixMilli()
		dayEndMs := d.AddDate(0, 0, 1).UnixMilli()

		rollup, err := db.QueryDayActivityRollup(dayStartMs, dayEndMs)
		if err != nil {
			respondError(c, errs.Wrap(errs.DatabaseBusy, "failed to query activities", err))
			return
		}
		rollup.Date = d.Format("2006-01-02")
		out = append(out, rollup)
	}
	respondList(c, out)
}

// GetDaySummary handles GET /api/days/:date/summary, behind
// get_day_summary(date, force_refresh).
func (h *Handlers) GetDaySummary(c *gin.Context) {
	dayStartMs, dayEndMs, ok := parseDayParam(c, c.Param("date"))
	if !ok {
		return
	}
	forceRefresh, _ := strconv.ParseBool(c.DefaultQuery("force_refresh", "false"))

	summary, err := h.orch.GenerateDaySummary(c.Request.Context(), c.Param("date"), dayStartMs, dayEndMs, forceRefresh)
	if err != nil {
		respondError(c, errs.Wrap(errs.LLMUnavailable, "failed to generate day summary", err))
		return
	}
	respondData(c, gin.H{"date": c.Param("date"), "summary": summary})
}
