package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"

	"github.com/goliatone/go-insights/pkg/client"
)

var errMissingAPI = errors.New("commands: api is required")

type errorHandler interface {
	HandleError(err error) bool
}

func handle(guard errorHandler, err error) {
	if guard != nil {
		guard.HandleError(err)
	}
}

// ProfileRequest selects the profile flavour.
type ProfileRequest struct {
	// WithStats fetches /users/profile instead of /auth/me.
	WithStats bool
}

// ProfileQuery reads the current user.
type ProfileQuery struct {
	api   client.AuthAPI
	guard errorHandler
}

// NewProfileQuery builds the query. guard may be nil.
func NewProfileQuery(api client.AuthAPI, guard errorHandler) *ProfileQuery {
	return &ProfileQuery{api: api, guard: guard}
}

var _ gocommand.Querier[ProfileRequest, client.UserProfile] = (*ProfileQuery)(nil)

// Query fetches the profile.
func (q *ProfileQuery) Query(ctx context.Context, req ProfileRequest) (client.UserProfile, error) {
	if q.api == nil {
		return client.UserProfile{}, errMissingAPI
	}
	var (
		profile client.UserProfile
		err     error
	)
	if req.WithStats {
		profile, err = q.api.Profile(ctx)
	} else {
		profile, err = q.api.Me(ctx)
	}
	if err != nil {
		handle(q.guard, err)
		return client.UserProfile{}, err
	}
	return profile, nil
}

// DatasetsRequest filters the dataset list.
type DatasetsRequest struct {
	Status client.DatasetStatus
}

// DatasetsQuery lists datasets once.
type DatasetsQuery struct {
	api   client.DatasetAPI
	guard errorHandler
}

// NewDatasetsQuery builds the query. guard may be nil.
func NewDatasetsQuery(api client.DatasetAPI, guard errorHandler) *DatasetsQuery {
	return &DatasetsQuery{api: api, guard: guard}
}

var _ gocommand.Querier[DatasetsRequest, []client.Dataset] = (*DatasetsQuery)(nil)

// Query lists datasets, optionally keeping one status.
func (q *DatasetsQuery) Query(ctx context.Context, req DatasetsRequest) ([]client.Dataset, error) {
	if q.api == nil {
		return nil, errMissingAPI
	}
	datasets, err := q.api.ListDatasets(ctx)
	if err != nil {
		handle(q.guard, err)
		return nil, err
	}
	if req.Status == "" {
		return datasets, nil
	}
	out := make([]client.Dataset, 0, len(datasets))
	for _, ds := range datasets {
		if ds.Status == req.Status {
			out = append(out, ds)
		}
	}
	return out, nil
}
