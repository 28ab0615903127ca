package school

import (
	"context"

	"github.com/trezcool/barakah/core"
	"github.com/trezcool/barakah/core/apiclient"
)

const keyCourseID = "courseId"

var errCourseRequired = core.NewValidationError(nil, core.FieldError{Field: keyCourseID, Error: "this field is required"})

// Courses is the course store, with the course sessions and attendance.
type Courses struct {
	*Resource
}

// Sessions returns the sessions of a course. The API lists every session, they are
// filtered by `courseId` here.
func (c *Courses) Sessions(ctx context.Context, courseID core.ID) ([]core.Record, error) {
	if courseID.IsZero() {
		return nil, errIDRequired
	}
	res, err := c.client.Execute(ctx, apiclient.Get("/course-sessions", nil), apiclient.ListOf("sessions"))
	if err != nil {
		return nil, err
	}
	var all []core.Record
	if err := res.Decode(&all); err != nil {
		return nil, err
	}

	sessions := make([]core.Record, 0, len(all))
	for _, s := range all {
		if sameID(core.ID(s.String(keyCourseID)), courseID) {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

// AddSession schedules a session; `payload` must reference its course.
func (c *Courses) AddSession(ctx context.Context, payload core.Record) (core.Record, error) {
	if core.CleanString(payload.String(keyCourseID)) == "" {
		return nil, errCourseRequired
	}
	res, err := c.client.Execute(ctx, apiclient.Post("/course-sessions", payload), apiclient.ObjectOf("session"))
	if err != nil {
		return nil, err
	}
	return decodeRecord(res)
}

func (c *Courses) AddAttendance(ctx context.Context, payload core.Record) (core.Record, error) {
	if len(payload) == 0 {
		return nil, errPayloadRequired
	}
	res, err := c.client.Execute(ctx, apiclient.Post("/student-attendance", payload), apiclient.ObjectOf("attendance"))
	if err != nil {
		return nil, err
	}
	return decodeRecord(res)
}

// sameID compares ids numerically when both are numbers ("07" == "7").
func sameID(a, b core.ID) bool {
	if x, ok := apiclient.Int(a.String()); ok {
		if y, ok := apiclient.Int(b.String()); ok {
			return x == y
		}
	}
	return a == b
}
