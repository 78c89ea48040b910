package dto

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// identityPattern accepts the opaque member identities the upstream
// auth source hands us: printable, no whitespace, bounded length.
var identityPattern = regexp.MustCompile(`^\S{1,128}$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("identity", validateIdentity)
	}
}

func validateIdentity(fl validator.FieldLevel) bool {
	return identityPattern.MatchString(fl.Field().String())
}

// TrimStruct trims surrounding whitespace from every settable string
// field (and []string element) of the struct pointed to by s. Secrets
// are trimmed too: a secret that differs only in surrounding
// whitespace is treated as the same secret on both write and read.
func TrimStruct(s any) {
	v := reflect.ValueOf(s)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(strings.TrimSpace(f.String()))
		case reflect.Slice:
			if f.Type().Elem().Kind() != reflect.String {
				continue
			}
			for j := 0; j < f.Len(); j++ {
				e := f.Index(j)
				e.SetString(strings.TrimSpace(e.String()))
			}
		}
	}
}
