package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	sheetsv4 "google.golang.org/api/sheets/v4"

	"club-registration/internal/backend"
	"club-registration/internal/models"
)

// Tabs that may be read. Computed resources such as upcoming_sessions only
// exist behind the web app.
var readable = map[string]bool{
	models.ResourceCamps:                true,
	models.ResourceSessions:             true,
	models.ResourceTraineeRegistrations: true,
	models.ResourceCoachRegistrations:   true,
	models.ResourceSettings:             true,
	models.ResourceCoachesExperience:    true,
}

var tabByRole = map[string]string{
	models.RoleCamp:    models.ResourceCamps,
	models.RoleSession: models.ResourceSessions,
	models.RoleTrainee: models.ResourceTraineeRegistrations,
	models.RoleCoach:   models.ResourceCoachRegistrations,
}

func (c *Client) readAll(ctx context.Context, sheet string) ([][]interface{}, error) {
	resp, err := c.srv.Spreadsheets.Values.Get(c.spreadsheetID, sheet+"!A:Z").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (c *Client) appendRow(ctx context.Context, sheet string, row models.Row) error {
	vr := &sheetsv4.ValueRange{Values: [][]interface{}{row}}
	_, err := c.srv.Spreadsheets.Values.Append(c.spreadsheetID, sheet+"!A:Z", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (c *Client) clearRow(ctx context.Context, sheet string, rowNum int) error {
	a1 := fmt.Sprintf("%s!A%d:Z%d", sheet, rowNum, rowNum)
	_, err := c.srv.Spreadsheets.Values.Clear(c.spreadsheetID, a1, &sheetsv4.ClearValuesRequest{}).
		Context(ctx).
		Do()
	return err
}

func (c *Client) writeRow(ctx context.Context, sheet string, rowNum int, row models.Row) error {
	if err := c.clearRow(ctx, sheet, rowNum); err != nil {
		return err
	}
	vr := &sheetsv4.ValueRange{Values: [][]interface{}{row}}
	_, err := c.srv.Spreadsheets.Values.Update(c.spreadsheetID, fmt.Sprintf("%s!A%d", sheet, rowNum), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// Fetch returns every data row of the tab, header excluded.
func (c *Client) Fetch(ctx context.Context, resource string) ([]models.Row, error) {
	if !readable[resource] {
		return nil, fmt.Errorf("sheets fetch %s: %w", resource, backend.ErrUnsupported)
	}
	values, err := c.readAll(ctx, resource)
	if err != nil {
		return nil, fmt.Errorf("sheets fetch %s: %w", resource, err)
	}
	return toRows(values), nil
}

func toRows(values [][]interface{}) []models.Row {
	rows := []models.Row{}
	// header row at index 0
	for i := 1; i < len(values); i++ {
		if len(values[i]) == 0 {
			continue
		}
		rows = append(rows, models.Row(values[i]))
	}
	return rows
}

// Post applies add/update/delete for camps, courses and registrations.
func (c *Client) Post(ctx context.Context, req backend.Request) (backend.Response, error) {
	sheet, ok := tabByRole[req.Path.Role]
	if !ok {
		return backend.Response{}, fmt.Errorf("sheets %s/%s: %w", req.Path.Role, req.Path.Operation, backend.ErrUnsupported)
	}
	values, err := c.readAll(ctx, sheet)
	if err != nil {
		return backend.Response{}, err
	}
	raw, err := json.Marshal(req.Data)
	if err != nil {
		return backend.Response{}, err
	}
	var ref struct {
		ID interface{} `json:"id"`
	}
	_ = json.Unmarshal(raw, &ref)
	id := idString(ref.ID)

	switch req.Path.Operation {
	case models.OpAdd:
		newID := nextID(values)
		row, err := encode(req.Path.Role, strconv.FormatInt(newID, 10), raw)
		if err != nil {
			return backend.Response{}, err
		}
		if err := c.appendRow(ctx, sheet, row); err != nil {
			return backend.Response{}, err
		}
		return success(newID), nil

	case models.OpUpdate:
		rowNum := findRow(values, id)
		if rowNum == 0 {
			return backend.Response{}, fmt.Errorf("%s %q not found", req.Path.Role, id)
		}
		row, err := encode(req.Path.Role, id, raw)
		if err != nil {
			return backend.Response{}, err
		}
		if err := c.writeRow(ctx, sheet, rowNum, row); err != nil {
			return backend.Response{}, err
		}
		n, _ := strconv.ParseInt(id, 10, 64)
		return success(n), nil

	case models.OpDelete:
		rowNum := findRow(values, id)
		if rowNum == 0 {
			return backend.Response{}, fmt.Errorf("%s %q not found", req.Path.Role, id)
		}
		if err := c.clearRow(ctx, sheet, rowNum); err != nil {
			return backend.Response{}, err
		}
		n, _ := strconv.ParseInt(id, 10, 64)
		return success(n), nil
	}
	return backend.Response{}, fmt.Errorf("sheets %s/%s: %w", req.Path.Role, req.Path.Operation, backend.ErrUnsupported)
}

func encode(role, id string, raw []byte) (models.Row, error) {
	switch role {
	case models.RoleCamp:
		var camp models.Camp
		if err := json.Unmarshal(raw, &camp); err != nil {
			return nil, err
		}
		camp.ID = id
		return models.EncodeCamp(camp), nil
	case models.RoleSession:
		var course models.Course
		if err := json.Unmarshal(raw, &course); err != nil {
			return nil, err
		}
		course.ID = id
		return models.EncodeCourse(course), nil
	case models.RoleTrainee:
		var cand models.Candidate
		if err := json.Unmarshal(raw, &cand); err != nil {
			return nil, err
		}
		return models.Row{id, cand.FirstName, cand.LastName, cand.AgeGroup, cand.SessionName, cand.Date.Format(time.RFC3339)}, nil
	case models.RoleCoach:
		var cand models.Candidate
		if err := json.Unmarshal(raw, &cand); err != nil {
			return nil, err
		}
		return models.Row{id, cand.FirstName, cand.LastName, cand.SessionName, cand.Date.Format(time.RFC3339), "TRUE"}, nil
	}
	return nil, backend.ErrUnsupported
}

func success(id int64) backend.Response {
	body, _ := json.Marshal(map[string]interface{}{"result": "success", "id": id})
	return backend.Response{Body: body}
}

// nextID is one past the largest numeric id in column A.
func nextID(values [][]interface{}) int64 {
	var highest int64
	for i := 1; i < len(values); i++ {
		n, err := strconv.ParseInt(get(values[i], 0), 10, 64)
		if err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1
}

// findRow returns the 1-indexed sheet row holding id, 0 when absent.
func findRow(values [][]interface{}, id string) int {
	if id == "" {
		return 0
	}
	for i := 1; i < len(values); i++ {
		if get(values[i], 0) == id {
			return i + 1
		}
	}
	return 0
}

func idString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatInt(int64(x), 10)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// ---------- helpers ----------

func get(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}
