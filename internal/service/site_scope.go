package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"example.com/backstage/services/jamfops/internal/jamf"
	"example.com/backstage/services/jamfops/internal/models"
)

// siteScope holds a saved search that is being repointed at individual
// sites. Release must run once the caller is done, on every path.
type siteScope struct {
	scoper SearchScoper
	search string
	log    logrus.FieldLogger
}

func acquireSiteScope(scoper SearchScoper, search string, log logrus.FieldLogger) *siteScope {
	return &siteScope{scoper: scoper, search: search, log: log}
}

// Count points the search at site and reads how many devices it matches.
func (s *siteScope) Count(ctx context.Context, site models.Site) (int, error) {
	session, err := s.scoper.ScopeAdvancedSearch(ctx, s.search, site.ID)
	if err != nil {
		return 0, err
	}
	return s.scoper.AdvancedSearchSize(ctx, s.search, session)
}

// Release restores the search to full scope. It ignores cancellation of ctx
// so an aborted run still restores the search.
func (s *siteScope) Release(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	if _, err := s.scoper.ScopeAdvancedSearch(ctx, s.search, jamf.FullScopeSiteID); err != nil {
		return err
	}
	s.log.WithField("search", s.search).Debug("Restored search to full scope")
	return nil
}
