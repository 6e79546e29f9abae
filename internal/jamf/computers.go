package jamf

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"example.com/backstage/services/jamfops/internal/failure"
	"example.com/backstage/services/jamfops/internal/models"
)

// RemoteManagement is the remote_management block of a computer record.
// Username and password are only sent when set.
type RemoteManagement struct {
	Managed            bool   `xml:"managed"`
	ManagementUsername string `xml:"management_username,omitempty"`
	ManagementPassword string `xml:"management_password,omitempty"`
}

// Unmanaged returns the payload that turns management off.
func Unmanaged() RemoteManagement {
	return RemoteManagement{Managed: false}
}

// Managed returns the payload that turns management back on with the given
// management account.
func Managed(username, password string) RemoteManagement {
	return RemoteManagement{
		Managed:            true,
		ManagementUsername: username,
		ManagementPassword: password,
	}
}

type computerUpdate struct {
	XMLName xml.Name `xml:"computer"`
	General struct {
		RemoteManagement RemoteManagement `xml:"remote_management"`
	} `xml:"general"`
}

type computerGeneral struct {
	Computer struct {
		General struct {
			Name string `json:"name"`
		} `json:"general"`
	} `json:"computer"`
}

// ComputerUpdateXML renders the XML document sent to change a computer's
// management state.
func ComputerUpdateXML(rm RemoteManagement) ([]byte, error) {
	var doc computerUpdate
	doc.General.RemoteManagement = rm

	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return append([]byte(strings.TrimSpace(xml.Header)), body...), nil
}

// UpdateRemoteManagement changes the management state of a computer.
func (c *Client) UpdateRemoteManagement(ctx context.Context, id models.DeviceID, rm RemoteManagement) error {
	payload, err := ComputerUpdateXML(rm)
	if err != nil {
		return failure.Wrap(failure.ErrParse, "encode computer update", err)
	}

	_, err = c.put(ctx, "update computer "+string(id),
		c.resource("computers/id/%s", url.PathEscape(string(id))), payload)
	return err
}

// ComputerName looks up the display name of a computer.
func (c *Client) ComputerName(ctx context.Context, id models.DeviceID) (string, error) {
	op := "get computer " + string(id)
	body, err := c.get(ctx, op,
		c.resource("computers/id/%s/subset/General", url.PathEscape(string(id))), contentTypeJSON, Session{})
	if err != nil {
		return "", err
	}

	var record computerGeneral
	if err := json.Unmarshal(body, &record); err != nil {
		c.log.WithField("json", string(body)).Debug("Unparseable computer record")
		return "", failure.Wrap(failure.ErrParse, op, err)
	}
	if record.Computer.General.Name == "" {
		return "", failure.Wrap(failure.ErrParse, op, fmt.Errorf("computer record has no name"))
	}
	return record.Computer.General.Name, nil
}

// ComputerURL is the console link for a computer.
func (c *Client) ComputerURL(id models.DeviceID) string {
	return fmt.Sprintf("%s/computers.html?id=%s", c.baseURL, url.QueryEscape(string(id)))
}
