package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/xiaoha/batterywidget/pkg/batteryapi"
	"github.com/xiaoha/batterywidget/pkg/config"
	"github.com/xiaoha/batterywidget/pkg/events"
	"github.com/xiaoha/batterywidget/pkg/types"
	"github.com/xiaoha/batterywidget/pkg/version"
	"github.com/xiaoha/batterywidget/pkg/widget"
)

func (s *Server) listInstances(c *gin.Context) {
	ids, err := s.coord.Known()
	if err != nil {
		logrus.Errorf("listInstances failed: %v", err)
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	statuses := make([]widget.Status, 0, len(ids))
	for _, id := range ids {
		st, err := s.coord.Status(id)
		if err != nil {
			abortWithError(c, http.StatusInternalServerError, err)
			return
		}
		statuses = append(statuses, st)
	}

	c.IndentedJSON(http.StatusOK, statuses)
}

func (s *Server) getInstance(c *gin.Context) {
	id, ok := instanceParam(c)
	if !ok {
		return
	}

	st, err := s.coord.Status(id)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusOK, st)
}

func (s *Server) getInstanceImage(c *gin.Context) {
	id, ok := instanceParam(c)
	if !ok {
		return
	}
	if s.png == nil {
		abortWithError(c, http.StatusNotFound, errors.New("image rendering is disabled"))
		return
	}

	path := s.png.Path(id)
	if _, err := os.Stat(path); err != nil {
		abortWithError(c, http.StatusNotFound, fmt.Errorf("instance %s has not been rendered", id))
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.File(path)
}

// setInstanceConfig is the configuration flow: normalize the submission,
// check it against the battery API, save it and update the instance.
func (s *Server) setInstanceConfig(c *gin.Context) {
	id, ok := instanceParam(c)
	if !ok {
		return
	}

	var u config.Update
	if err := c.BindJSON(&u); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	inst, err := u.Normalize(id)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.validateTimeout)
	err = s.validator.Validate(ctx, inst.Request())
	cancel()
	if err != nil {
		logrus.WithFields(inst.LogrusFields()).Warnf("configuration rejected: %v", err)
		abortWithError(c, http.StatusUnprocessableEntity,
			fmt.Errorf("battery %s could not be verified (%s): %w", inst.BatteryID, batteryapi.ReasonOf(err), err))
		return
	}

	if err := s.store.Save(inst); err != nil {
		logrus.Errorf("save instance config failed: %v", err)
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	logrus.WithFields(inst.LogrusFields()).Info("instance configured")

	s.coord.OnInstancesUpdated(context.WithoutCancel(c.Request.Context()), []types.InstanceID{id})

	st, err := s.coord.Status(id)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, st)
}

func (s *Server) tapInstance(c *gin.Context) {
	id, ok := instanceParam(c)
	if !ok {
		return
	}

	kind := s.coord.OnTap(context.WithoutCancel(c.Request.Context()), id)
	c.IndentedJSON(http.StatusOK, kind)
}

func (s *Server) refreshInstance(c *gin.Context) {
	id, ok := instanceParam(c)
	if !ok {
		return
	}

	// A caller hanging up must not leave a failed render behind.
	state, rendered := s.coord.Refresh(context.WithoutCancel(c.Request.Context()), id, types.SourceManual)
	c.IndentedJSON(http.StatusOK, gin.H{
		"state":    state,
		"rendered": rendered,
	})
}

func (s *Server) removeInstance(c *gin.Context) {
	id, ok := instanceParam(c)
	if !ok {
		return
	}

	s.coord.OnInstanceRemoved(id)
	if s.png != nil {
		s.png.Remove(id)
	}
	s.hub.Publish(events.WidgetRemoved, events.InstanceEvent{Instance: int(id)})

	c.IndentedJSON(http.StatusOK, "ok")
}

// updateInstances takes a JSON array of ids. An empty body updates every
// stored instance.
func (s *Server) updateInstances(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	if len(body) == 0 {
		if err := s.updateAll(ctx); err != nil {
			abortWithError(c, http.StatusInternalServerError, err)
			return
		}
		c.IndentedJSON(http.StatusOK, "ok")
		return
	}

	var ids []types.InstanceID
	if err := json.Unmarshal(body, &ids); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("expected a JSON array of instance ids: %w", err))
		return
	}

	s.coord.OnInstancesUpdated(ctx, ids)
	c.IndentedJSON(http.StatusOK, "ok")
}

func (s *Server) disableAll(c *gin.Context) {
	s.coord.OnAllDisabled()
	s.hub.Publish(events.WidgetDisabled, events.InstanceEvent{})
	c.IndentedJSON(http.StatusOK, "ok")
}

func (s *Server) streamEvents(c *gin.Context) {
	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	c.Stream(func(_ io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev.Data)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

func (s *Server) getDaemonInfo(c *gin.Context) {
	info := types.DaemonInfo{
		Version:          version.Version,
		EventSubscribers: s.hub.Subscribers(),
	}
	if s.updater != nil {
		nextRun, running := s.updater.Status()
		if running {
			info.HostUpdate = &types.HostUpdateInfo{NextRun: nextRun, Running: running}
		}
	}
	c.IndentedJSON(http.StatusOK, info)
}
