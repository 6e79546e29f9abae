package jamf

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"example.com/backstage/services/jamfops/internal/failure"
	"example.com/backstage/services/jamfops/internal/models"
)

// FullScopeSiteID scopes an advanced search to every site.
const FullScopeSiteID = -1

// flexInt accepts ids encoded either as JSON numbers or as numeric strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		i, err := strconv.Atoi(n.String())
		if err != nil {
			return err
		}
		*f = flexInt(i)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("id %s is neither a number nor a string", string(data))
	}
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*f = flexInt(i)
	return nil
}

type advancedSearchResult struct {
	Search *struct {
		Computers []struct {
			ID *flexInt `json:"id"`
		} `json:"computers"`
	} `json:"advanced_computer_search"`
}

type advancedSearchXML struct {
	XMLName   xml.Name `xml:"advanced_computer_search"`
	Computers struct {
		Size string `xml:"size"`
	} `xml:"computers"`
}

type searchScopeXML struct {
	XMLName xml.Name `xml:"advanced_computer_search"`
	Site    struct {
		ID int `xml:"id"`
	} `xml:"site"`
}

type sitesXML struct {
	XMLName xml.Name `xml:"sites"`
	Sites   []struct {
		ID   string `xml:"id"`
		Name string `xml:"name"`
	} `xml:"site"`
}

func (c *Client) searchURL(name string) string {
	return c.resource("advancedcomputersearches/name/%s", url.PathEscape(name))
}

// AdvancedSearchComputerIDs returns the ids of every computer currently
// matched by the named advanced computer search, in server order.
func (c *Client) AdvancedSearchComputerIDs(ctx context.Context, name string) ([]models.DeviceID, error) {
	op := fmt.Sprintf("get advanced search %q", name)
	body, err := c.get(ctx, op, c.searchURL(name), contentTypeJSON, Session{})
	if err != nil {
		return nil, err
	}

	var result advancedSearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		c.log.WithField("json", string(body)).Debug("Unparseable advanced search")
		return nil, failure.Wrap(failure.ErrParse, op, err)
	}
	if result.Search == nil {
		return nil, failure.Wrap(failure.ErrParse, op, fmt.Errorf("response has no advanced_computer_search"))
	}

	ids := make([]models.DeviceID, 0, len(result.Search.Computers))
	for i, computer := range result.Search.Computers {
		if computer.ID == nil {
			return nil, failure.Wrap(failure.ErrParse, op, fmt.Errorf("computer %d has no id", i))
		}
		ids = append(ids, models.DeviceIDFromInt(int(*computer.ID)))
	}
	return ids, nil
}

// ScopeAdvancedSearch rewrites the site criterion of the named search. The
// returned session must be passed to AdvancedSearchSize so the read sees the
// new scope.
func (c *Client) ScopeAdvancedSearch(ctx context.Context, name string, siteID int) (Session, error) {
	var doc searchScopeXML
	doc.Site.ID = siteID

	body, err := xml.Marshal(doc)
	if err != nil {
		return Session{}, failure.Wrap(failure.ErrParse, "encode search scope", err)
	}

	op := fmt.Sprintf("scope advanced search %q to site %d", name, siteID)
	return c.put(ctx, op, c.searchURL(name), body)
}

// AdvancedSearchSize returns how many computers the named search matches.
func (c *Client) AdvancedSearchSize(ctx context.Context, name string, session Session) (int, error) {
	op := fmt.Sprintf("get advanced search size %q", name)
	body, err := c.get(ctx, op, c.searchURL(name), contentTypeXML, session)
	if err != nil {
		return 0, err
	}

	var doc advancedSearchXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		c.log.WithField("xml", string(body)).Debug("Unparseable advanced search size")
		return 0, failure.Wrap(failure.ErrParse, op, err)
	}
	size, err := strconv.Atoi(strings.TrimSpace(doc.Computers.Size))
	if err != nil {
		c.log.WithField("xml", string(body)).Debug("Unparseable advanced search size")
		return 0, failure.Wrap(failure.ErrParse, op, fmt.Errorf("computers/size: %w", err))
	}
	return size, nil
}

// ListSites returns every site defined on the server.
func (c *Client) ListSites(ctx context.Context) ([]models.Site, error) {
	const op = "get sites"
	body, err := c.get(ctx, op, c.resource("sites"), contentTypeXML, Session{})
	if err != nil {
		return nil, err
	}

	var doc sitesXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		c.log.WithField("xml", string(body)).Debug("Unparseable site list")
		return nil, failure.Wrap(failure.ErrParse, op, err)
	}

	sites := make([]models.Site, 0, len(doc.Sites))
	for _, s := range doc.Sites {
		id, err := strconv.Atoi(strings.TrimSpace(s.ID))
		if err != nil {
			return nil, failure.Wrap(failure.ErrParse, op, fmt.Errorf("site %q: %w", s.Name, err))
		}
		sites = append(sites, models.Site{ID: id, Name: s.Name})
	}
	return sites, nil
}
