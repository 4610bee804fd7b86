package roster

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stageworks/roster_backend/config"
	"github.com/stageworks/roster_backend/models"
	"github.com/stageworks/roster_backend/utils"
	"github.com/xuri/excelize/v2"
)

const rosterSheet = "Roster"

var timeNow = time.Now

var rosterHeadings = []string{
	"First Name", "Last Name", "Legal Name", "Email", "Phone", "Parent Name", "Parent Email",
	"Parent Phone", "Address", "Birthday", "Age", "Section", "Instrument", "Serial Number",
	"Season", "Tuition", "Contract Signed", "Source",
}

func rosterRow(m *models.Member, now time.Time) []interface{} {
	var age interface{}
	if a := m.CurrentAge(now); a != nil {
		age = *a
	}
	return []interface{}{
		m.FirstName, m.LastName, m.LegalName, m.Email, m.Phone, m.ParentName, m.ParentEmail,
		m.ParentPhone, m.Address, m.Birthday, age, m.Section, m.Instrument, m.SerialNumber,
		m.Season, m.TuitionAmount.InexactFloat64(), m.ContractSigned, string(m.Source),
	}
}

// BuildRosterWorkbook renders members as a single-sheet xlsx.
func BuildRosterWorkbook(members []*models.Member, now time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", rosterSheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(rosterSheet, "A1", &rosterHeadings); err != nil {
		return nil, err
	}
	for i, m := range members {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := rosterRow(m, now)
		if err := f.SetSheetRow(rosterSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	if err := f.SetPanes(rosterSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// exportHandler streams the xlsx, or with upload=true stores it in the export bucket and returns its location.
func exportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		filter := models.MemberFilter{
			Season:  c.Query("season"),
			Section: c.Query("section"),
		}
		members, err := models.ListMembers(ctx, filter)
		if err != nil {
			respondError(c, "exportHandler", err)
			return
		}
		now := timeNow()
		data, err := BuildRosterWorkbook(members, now)
		if err != nil {
			respondError(c, "exportHandler", err)
			return
		}

		season := filter.Season
		if season == "" {
			season = "all"
		}
		filename := fmt.Sprintf("roster-%s-%s.xlsx", season, now.UTC().Format("20060102-150405"))

		if c.Query("upload") == "true" {
			bucket := utils.ExportBucket()
			if bucket == "" {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "export bucket is not configured"})
				return
			}
			uri, err := utils.UploadBytesToGCS(ctx, bucket, "exports/"+filename, data, utils.XlsxContentType)
			if err != nil {
				config.LogError(config.GetLogger(), "roster", "exportHandler", "UploadBytesToGCS", filename, err)
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"url": uri, "rows": len(members)})
			return
		}

		c.Header("Content-Disposition", "attachment; filename="+filename)
		c.Data(http.StatusOK, utils.XlsxContentType, data)
	}
}
