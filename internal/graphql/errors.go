package graphql

import (
	httperrors "github.com/wenex-org/platform-sub000/internal/http/errors"
)

// appError cumple gqlerrors.ExtendedError: la entrada de errors[] lleva
// extensions.code igual al code de REST.
type appError struct {
	*httperrors.AppError
}

func (e appError) Error() string { return e.Message }

func (e appError) Extensions() map[string]any { return e.GraphQLExtensions() }

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return appError{httperrors.FromError(err)}
}
