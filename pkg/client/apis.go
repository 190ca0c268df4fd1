package client

import (
	"encoding/json"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/xiaoha/batterywidget/pkg/config"
	"github.com/xiaoha/batterywidget/pkg/types"
	"github.com/xiaoha/batterywidget/pkg/widget"
)

// RefreshResult is the answer to a manual refresh. Rendered is false when
// the refresh was coalesced into a fetch already in flight.
type RefreshResult struct {
	State    types.DisplayState `json:"state"`
	Rendered bool               `json:"rendered"`
}

func instancePath(id types.InstanceID) string {
	return "/instances/" + id.String()
}

func (c *Client) ListInstances() ([]widget.Status, error) {
	ret, err := c.Get("/instances")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to list instances")
	}

	var list []widget.Status
	if err := json.Unmarshal([]byte(ret), &list); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal instances")
	}
	return list, nil
}

func (c *Client) GetInstance(id types.InstanceID) (*widget.Status, error) {
	ret, err := c.Get(instancePath(id))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get instance %s", id)
	}

	var st widget.Status
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal instance %s", id)
	}
	return &st, nil
}

// Configure submits a configuration for id. The daemon checks it against
// the battery API before saving.
func (c *Client) Configure(id types.InstanceID, u config.Update) (*widget.Status, error) {
	payload, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}

	ret, err := c.Put(instancePath(id)+"/config", string(payload))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to configure instance %s", id)
	}

	var st widget.Status
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal instance %s", id)
	}
	return &st, nil
}

// Update asks the daemon to update ids, or every stored instance when ids
// is empty.
func (c *Client) Update(ids ...types.InstanceID) error {
	data := ""
	if len(ids) > 0 {
		payload, err := json.Marshal(ids)
		if err != nil {
			return err
		}
		data = string(payload)
	}

	_, err := c.Post("/update", data)
	return pkgerrors.Wrapf(err, "failed to update instances")
}

func (c *Client) Tap(id types.InstanceID) (string, error) {
	ret, err := c.Post(instancePath(id)+"/tap", "")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to tap instance %s", id)
	}
	return parseStringResponse(ret)
}

func (c *Client) Refresh(id types.InstanceID) (*RefreshResult, error) {
	ret, err := c.Post(instancePath(id)+"/refresh", "")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to refresh instance %s", id)
	}

	var res RefreshResult
	if err := json.Unmarshal([]byte(ret), &res); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal refresh result")
	}
	return &res, nil
}

func (c *Client) Remove(id types.InstanceID) error {
	_, err := c.Delete(instancePath(id))
	return pkgerrors.Wrapf(err, "failed to remove instance %s", id)
}

func (c *Client) Disable() error {
	_, err := c.Post("/disable", "")
	return pkgerrors.Wrapf(err, "failed to disable widgets")
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	return parseStringResponse(ret)
}

func (c *Client) GetDaemonInfo() (*types.DaemonInfo, error) {
	ret, err := c.Get("/daemon")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get daemon info")
	}

	var info types.DaemonInfo
	if err := json.Unmarshal([]byte(ret), &info); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal daemon info")
	}
	return &info, nil
}

func parseStringResponse(resp string) (string, error) {
	s, err := strconv.Unquote(resp)
	if err != nil {
		return "", pkgerrors.Errorf("unexpected response: %s", resp)
	}
	return s, nil
}
