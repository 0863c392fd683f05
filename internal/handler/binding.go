package handler

import (
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/avahealth/scheduling-api/pkg/calendar"
)

// Custom binding validations shared by all handlers. calendardate accepts
// the YYYY-MM-DD wire format; timeofday accepts a bare HH:mm or a full
// timestamp, the two shapes the voice agent sends.
func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	_ = v.RegisterValidation("calendardate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(calendar.DateLayout, fl.Field().String())
		return err == nil
	})

	_ = v.RegisterValidation("timeofday", func(fl validator.FieldLevel) bool {
		_, err := calendar.ParseInstant(fl.Field().String(), time.Time{}, time.UTC)
		return err == nil
	})
}
