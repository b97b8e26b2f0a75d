package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"raceday-api/apperror"
	"raceday-api/services"
	"raceday-api/utils"
)

// RouteFileField is the multipart field carrying the GPX file.
const RouteFileField = "route"

type EventController struct {
	events         *services.EventService
	maxUploadBytes int64
}

func NewEventController(events *services.EventService, maxUploadBytes int64) *EventController {
	return &EventController{events: events, maxUploadBytes: maxUploadBytes}
}

// CreateEventRequest is the JSON body of POST /events when the route is an
// external link rather than an uploaded file.
type CreateEventRequest struct {
	EventName        string  `json:"event_name"`
	EventTime        string  `json:"event_time"`
	EventDescription *string `json:"event_description"`
	EventStart       *string `json:"event_start"`
	Route            *string `json:"route"`
}

// eventForm is a parsed multipart body. Present records which text fields
// were sent at all.
type eventForm struct {
	values  map[string]string
	present map[string]bool
	file    *services.RouteFile
}

func (f *eventForm) get(key string) string {
	return f.values[key]
}

func (f *eventForm) optional(key string) *string {
	if !f.present[key] {
		return nil
	}
	v := f.values[key]
	return &v
}

func (ec *EventController) GetEvents(c *gin.Context) {
	events, err := ec.events.List(c.Request.Context())
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (ec *EventController) GetEvent(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	event, err := ec.events.Get(c.Request.Context(), id)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

func (ec *EventController) CreateEvent(c *gin.Context) {
	ctx := c.Request.Context()

	if isMultipart(c) {
		form, ok := ec.readForm(c)
		if !ok {
			return
		}

		event, err := ec.events.CreateWithUpload(ctx, services.EventFields{
			EventName:        form.get("event_name"),
			EventTime:        form.get("event_time"),
			EventDescription: form.optional("event_description"),
			EventStart:       form.optional("event_start"),
		}, form.file)
		if err != nil {
			utils.SendAppError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"event": event})
		return
	}

	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.SendError(c, http.StatusBadRequest, "Invalid JSON")
		return
	}

	event, err := ec.events.CreateWithRoute(ctx, services.EventFields{
		EventName:        req.EventName,
		EventTime:        req.EventTime,
		EventDescription: req.EventDescription,
		EventStart:       req.EventStart,
	}, req.Route)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event": event})
}

func (ec *EventController) UpdateEvent(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var in services.UpdateEventInput
	if isMultipart(c) {
		form, ok := ec.readForm(c)
		if !ok {
			return
		}
		in = services.UpdateEventInput{
			EventName:        form.optional("event_name"),
			EventTime:        form.optional("event_time"),
			EventDescription: form.optional("event_description"),
			EventStart:       form.optional("event_start"),
			File:             form.file,
		}
	} else {
		var err error
		in, err = decodeUpdateJSON(c)
		if err != nil {
			utils.SendAppError(c, err)
			return
		}
	}

	event, err := ec.events.Update(c.Request.Context(), id, in)
	if err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

func (ec *EventController) DeleteEvent(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := ec.events.Delete(c.Request.Context(), id); err != nil {
		utils.SendAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// decodeUpdateJSON keeps the difference between an absent key and a null
// one: null clears optional columns.
func decodeUpdateJSON(c *gin.Context) (services.UpdateEventInput, error) {
	raw := map[string]json.RawMessage{}
	if err := json.NewDecoder(c.Request.Body).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return services.UpdateEventInput{}, apperror.Validation("Invalid JSON")
	}

	var in services.UpdateEventInput
	for key, dst := range map[string]**string{
		"event_name":        &in.EventName,
		"event_time":        &in.EventTime,
		"event_description": &in.EventDescription,
		"event_start":       &in.EventStart,
	} {
		msg, ok := raw[key]
		if !ok {
			continue
		}
		var v *string
		if err := json.Unmarshal(msg, &v); err != nil {
			return services.UpdateEventInput{}, apperror.ValidationField(key, key+" must be a string")
		}
		if v == nil {
			v = new(string)
		}
		*dst = v
	}
	return in, nil
}

func (ec *EventController) readForm(c *gin.Context) (*eventForm, bool) {
	if c.Request.ContentLength > ec.maxUploadBytes {
		utils.SendError(c, http.StatusRequestEntityTooLarge, "route file is too large")
		return nil, false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ec.maxUploadBytes)

	mf, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.SendError(c, http.StatusRequestEntityTooLarge, "route file is too large")
		} else {
			utils.SendError(c, http.StatusBadRequest, "Invalid multipart form")
		}
		return nil, false
	}

	form := &eventForm{values: map[string]string{}, present: map[string]bool{}}
	for key, values := range mf.Value {
		if len(values) > 0 {
			form.values[key] = values[0]
			form.present[key] = true
		}
	}

	if headers := mf.File[RouteFileField]; len(headers) > 0 {
		file, err := readRouteFile(headers[0])
		if err != nil {
			utils.SendAppError(c, err)
			return nil, false
		}
		file.RouteName = form.values["route_name"]
		form.file = file
	}

	return form, true
}

func readRouteFile(header *multipart.FileHeader) (*services.RouteFile, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	return &services.RouteFile{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(strings.ToLower(c.GetHeader("Content-Type")), "multipart/form-data")
}

// parseID reads the :id path parameter, answering 400 itself when it is not
// a positive integer.
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		utils.SendError(c, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return uint(id), true
}
