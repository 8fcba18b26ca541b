package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/HammerMeetNail/memeboard/internal/middleware"
	"github.com/HammerMeetNail/memeboard/internal/models"
	"github.com/HammerMeetNail/memeboard/internal/services"
)

const (
	pageSize       = 24
	allowedTypesUI = ".jpg, .jpeg, .png, .gif, .webp"
)

type AssetHandler struct {
	assets         services.AssetServiceInterface
	pages          *PageHandler
	maxUploadBytes int64
}

func NewAssetHandler(assets services.AssetServiceInterface, pages *PageHandler, maxUploadBytes int64) *AssetHandler {
	return &AssetHandler{assets: assets, pages: pages, maxUploadBytes: maxUploadBytes}
}

func listingPath(area models.Area) string {
	return "/" + string(area)
}

func detailPath(area models.Area, id int64) string {
	return "/" + string(area) + "/" + strconv.FormatInt(id, 10)
}

// List renders one page of an area, newest first.
func (h *AssetHandler) List(area models.Area) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}

		total, err := h.assets.Count(r.Context(), area)
		if err != nil {
			logRequestError(r, "Failed to count assets", err)
			h.pages.InternalError(w, r)
			return
		}
		items, err := h.assets.ListWithReactions(r.Context(), area, viewerName(r), pageSize, (page-1)*pageSize)
		if err != nil {
			logRequestError(r, "Failed to list assets", err)
			h.pages.InternalError(w, r)
			return
		}

		data := PageData{
			Title:  areaTitle(area),
			Area:   area,
			Assets: items,
			Total:  total,
			Page:   page,
		}
		if page > 1 {
			data.PrevPage = page - 1
		}
		if page*pageSize < total {
			data.NextPage = page + 1
		}
		h.pages.Render(w, r, http.StatusOK, "list.html", data)
	}
}

// Detail shows a single asset. Unknown ids go back to the listing.
func (h *AssetHandler) Detail(area models.Area) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseAssetID(r)
		if !ok {
			http.Redirect(w, r, listingPath(area), http.StatusSeeOther)
			return
		}
		h.renderDetail(w, r, area, id, http.StatusOK, "")
	}
}

func (h *AssetHandler) renderDetail(w http.ResponseWriter, r *http.Request, area models.Area, id int64, status int, errMsg string) {
	asset, err := h.assets.Get(r.Context(), area, id)
	if errors.Is(err, services.ErrAssetNotFound) {
		http.Redirect(w, r, listingPath(area), http.StatusSeeOther)
		return
	}
	if err != nil {
		logRequestError(r, "Failed to load asset", err)
		h.pages.InternalError(w, r)
		return
	}

	decorated, err := h.assets.Decorate(r.Context(), []models.Asset{*asset}, viewerName(r))
	if err != nil || len(decorated) != 1 {
		if err == nil {
			err = errors.New("decorate returned no asset")
		}
		logRequestError(r, "Failed to load reactions", err)
		h.pages.InternalError(w, r)
		return
	}

	item := decorated[0]
	h.pages.Render(w, r, status, "detail.html", PageData{
		Title:    item.Title,
		Area:     area,
		Asset:    &item,
		ImageURL: h.pages.absoluteURL(r, item.URL),
		Error:    errMsg,
	})
}

func (h *AssetHandler) UploadForm(w http.ResponseWriter, r *http.Request) {
	area, ok := models.ParseArea(r.PathValue("area"))
	if !ok {
		h.pages.NotFound(w, r)
		return
	}
	h.renderUpload(w, r, area, http.StatusOK, "", "")
}

func (h *AssetHandler) renderUpload(w http.ResponseWriter, r *http.Request, area models.Area, status int, title, errMsg string) {
	h.pages.Render(w, r, status, "upload.html", PageData{
		Title:   "Upload a " + area.Singular(),
		Area:    area,
		Name:    title,
		Error:   errMsg,
		Allowed: allowedTypesUI,
	})
}

// Upload admits a multipart file and records it. Admission failures
// re-render the form with a message.
func (h *AssetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	area, ok := models.ParseArea(r.PathValue("area"))
	if !ok {
		h.pages.NotFound(w, r)
		return
	}
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if r.ContentLength > h.maxUploadBytes {
		h.renderUpload(w, r, area, http.StatusRequestEntityTooLarge, "", "That file is too large.")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.renderUpload(w, r, area, http.StatusRequestEntityTooLarge, "", "That file is too large.")
			return
		}
		h.renderUpload(w, r, area, http.StatusBadRequest, "", "Invalid upload.")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	title := r.PostFormValue("title")
	filename, body, closeFn := formFile(r, "file")
	defer closeFn()

	asset, err := h.assets.AdmitUpload(r.Context(), services.UploadParams{
		Area:       area,
		Title:      title,
		Filename:   filename,
		Body:       body,
		UploadedBy: identity.Name,
	})
	switch {
	case errors.Is(err, services.ErrNoFile):
		h.renderUpload(w, r, area, http.StatusBadRequest, title, "Please choose a file to upload.")
		return
	case errors.Is(err, services.ErrBadType):
		h.renderUpload(w, r, area, http.StatusBadRequest, title, "Only "+allowedTypesUI+" files are allowed.")
		return
	case err != nil:
		logRequestError(r, "Upload failed", err)
		h.pages.InternalError(w, r)
		return
	}

	http.Redirect(w, r, detailPath(area, asset.ID), http.StatusSeeOther)
}

// formFile returns the submitted filename and body, or "" and nil when the
// field is absent.
func formFile(r *http.Request, field string) (string, io.Reader, func()) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, func() {}
	}
	return header.Filename, file, func() { _ = file.Close() }
}

// Delete removes an asset given the master password. A wrong password
// re-renders the detail page and changes nothing.
func (h *AssetHandler) Delete(area models.Area) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseAssetID(r)
		if !ok {
			http.Redirect(w, r, listingPath(area), http.StatusSeeOther)
			return
		}
		if err := r.ParseForm(); err != nil {
			h.renderDetail(w, r, area, id, http.StatusBadRequest, "Invalid form submission.")
			return
		}

		err := h.assets.Delete(r.Context(), area, id, r.PostFormValue("master_password"))
		switch {
		case errors.Is(err, services.ErrWrongMasterPassword):
			h.renderDetail(w, r, area, id, http.StatusForbidden, "Wrong master password.")
			return
		case errors.Is(err, services.ErrAssetNotFound):
		case err != nil:
			logRequestError(r, "Delete failed", err)
			h.pages.InternalError(w, r)
			return
		}
		http.Redirect(w, r, listingPath(area), http.StatusSeeOther)
	}
}
