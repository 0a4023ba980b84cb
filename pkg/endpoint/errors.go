package endpoint

import "moff.io/moff-connect/pkg/errors"

var errMissingSchemeOrHost = errors.New("missing scheme or host")
