package api

import (
	"errors"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestErrorKinds(t *testing.T) {
	convey.Convey("Given kinded errors", t, func() {
		cause := errors.New("boom")

		convey.Convey("Then WrapKind should match both kind and cause", func() {
			err := WrapKind("api.x", ErrBadRequest, cause)
			convey.So(errors.Is(err, ErrBadRequest), convey.ShouldBeTrue)
			convey.So(errors.Is(err, cause), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldEqual, "api.x: bad request: boom")
		})

		convey.Convey("Then NewKind should carry only the kind", func() {
			err := NewKind("api.y", ErrBackpressure)
			convey.So(errors.Is(err, ErrBackpressure), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldEqual, "api.y: backpressure")
		})

		convey.Convey("Then Wrap should keep nil as nil", func() {
			convey.So(Wrap("api.z", nil), convey.ShouldBeNil)
			convey.So(errors.Is(Wrap("api.z", cause), cause), convey.ShouldBeTrue)
		})

		convey.Convey("Then status classification should follow the kind", func() {
			status, code := classify(Wrap("api.z", cause))
			convey.So(status, convey.ShouldEqual, 500)
			convey.So(code, convey.ShouldEqual, "internal_error")

			status, _ = classify(NewKind("api.z", ErrConflict))
			convey.So(status, convey.ShouldEqual, 409)
		})
	})
}
