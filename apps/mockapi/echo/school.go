package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/barakah/core"
)

// envelope wraps a list response of the school API. Each resource answers in its own way.
type envelope func(records []core.Record) interface{}

func dataEnvelope(records []core.Record) interface{} { return echo.Map{"data": records} }

func bareEnvelope(records []core.Record) interface{} { return records }

func keyEnvelope(key string) envelope {
	return func(records []core.Record) interface{} { return echo.Map{key: records} }
}

type resourceApi struct {
	data     *Data
	name     string
	envelope envelope
	// unique is a field whose value may not be shared by two records (409 otherwise)
	unique string
}

func registerSchoolAPI(g *echo.Group, data *Data) {
	resources := []resourceApi{
		{data: data, name: Students, envelope: dataEnvelope},
		{data: data, name: Teachers, envelope: bareEnvelope, unique: "email"},
		{data: data, name: Courses, envelope: keyEnvelope(Courses)},
		{data: data, name: Buses, envelope: dataEnvelope, unique: "plate"},
		{data: data, name: Subjects, envelope: bareEnvelope},
	}
	for i := range resources {
		api := &resources[i]
		rg := g.Group("/" + api.name)
		rg.GET("", api.list)
		rg.POST("", api.create)
		rg.GET("/:id", api.retrieve)
		rg.PATCH("/:id", api.update)
		rg.PUT("/:id", api.update)
		rg.DELETE("/:id", api.destroy)
	}

	sessions := &resourceApi{data: data, name: CourseSessions, envelope: dataEnvelope}
	g.GET("/"+CourseSessions, sessions.list)
	g.POST("/"+CourseSessions, sessions.create)

	attendance := &resourceApi{data: data, name: StudentAttendance, envelope: dataEnvelope}
	g.POST("/"+StudentAttendance, attendance.record)

	g.GET("/reports/dashboard", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, echo.Map{
			"students": len(data.list(Students)),
			"teachers": len(data.list(Teachers)),
			"courses":  len(data.list(Courses)),
			"buses":    len(data.list(Buses)),
			"subjects": len(data.list(Subjects)),
		})
	})
}

func (api *resourceApi) list(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.envelope(api.data.list(api.name)))
}

func (api *resourceApi) retrieve(ctx echo.Context) error {
	rec, ok := api.data.get(api.name, ctx.Param("id"))
	if !ok {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, echo.Map{"data": rec})
}

func (api *resourceApi) create(ctx echo.Context) error {
	data, err := bindRecord(ctx)
	if err != nil {
		return err
	}
	if err := api.checkUnique(data, ""); err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"data": api.data.Insert(api.name, data)})
}

func (api *resourceApi) update(ctx echo.Context) error {
	data, err := bindRecord(ctx)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	if err := api.checkUnique(data, id); err != nil {
		return err
	}
	rec, ok := api.data.update(api.name, id, data, ctx.Request().Method == http.MethodPut)
	if !ok {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, echo.Map{"data": rec})
}

func (api *resourceApi) destroy(ctx echo.Context) error {
	if !api.data.remove(api.name, ctx.Param("id")) {
		return errHttpNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *resourceApi) record(ctx echo.Context) error {
	data, err := bindRecord(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"success": true, "data": api.data.Insert(api.name, data)})
}

func (api *resourceApi) checkUnique(data core.Record, exceptID string) error {
	if api.unique == "" {
		return nil
	}
	if api.data.taken(api.name, api.unique, data.String(api.unique), exceptID) {
		return echo.NewHTTPError(http.StatusConflict, "The "+api.unique+" has already been taken.")
	}
	return nil
}
