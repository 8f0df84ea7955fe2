package views

import (
	"errors"
	"html/template"
	"io"
	"io/fs"
	"time"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/types"
)

var controlTmpl *template.Template

const timeLayout = "2006-01-02 15:04:05"

// loadTemplatesFromFS loads control templates from the given fs and dir.
func loadTemplatesFromFS(fsys fs.FS, dir string, loc *time.Location) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	funcs := template.FuncMap{
		"localtime": func(t time.Time) string { return t.In(loc).Format(timeLayout) },
	}
	controlTmpl, err = template.New("control").Funcs(funcs).ParseFS(sub, "partials/*.html")
	return err
}

// LoadTemplates loads embedded control templates; action times are shown in loc.
func LoadTemplates(loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	return loadTemplatesFromFS(viewsFS, "templates", loc)
}

// ResultData is the view model for the outcome of one control attempt.
type ResultData struct {
	Message string
	OK      bool
}

type ActionsData struct {
	Actions []types.Action
}

func RenderResultPartial(w io.Writer, data *ResultData) error {
	if controlTmpl == nil {
		return errors.New("control template not loaded: call views.LoadTemplates during startup")
	}
	return controlTmpl.ExecuteTemplate(w, "partials/control_result.html", data)
}

func RenderActionsPartial(w io.Writer, data *ActionsData) error {
	if controlTmpl == nil {
		return errors.New("control template not loaded: call views.LoadTemplates during startup")
	}
	return controlTmpl.ExecuteTemplate(w, "partials/actions.html", data)
}
