package csvio

import "mime/multipart"

type ImportPayload struct {
	FormFiles map[string]*multipart.FileHeader `json:"-" tstype:"-"`
}
