package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iamCapel/mopc-reportes/internal/geo"
	"github.com/iamCapel/mopc-reportes/internal/models"
)

// GeoHandler exposes the location lists that feed the form's cascading selects.
type GeoHandler struct {
	lookup geo.Lookup
}

func NewGeoHandler(lookup geo.Lookup) *GeoHandler {
	return &GeoHandler{lookup: lookup}
}

func (h *GeoHandler) Regiones(c *gin.Context) {
	c.JSON(http.StatusOK, models.Ok(h.lookup.Regiones()))
}

func (h *GeoHandler) Provincias(c *gin.Context) {
	c.JSON(http.StatusOK, models.Ok(nonNil(h.lookup.Provincias(c.Query("region")))))
}

func (h *GeoHandler) Municipios(c *gin.Context) {
	c.JSON(http.StatusOK, models.Ok(nonNil(h.lookup.Municipios(c.Query("provincia")))))
}

func (h *GeoHandler) Distritos(c *gin.Context) {
	c.JSON(http.StatusOK, models.Ok(nonNil(h.lookup.Distritos(c.Query("municipio")))))
}

func (h *GeoHandler) Sectores(c *gin.Context) {
	c.JSON(http.StatusOK, models.Ok(nonNil(h.lookup.Sectores(c.Query("distrito")))))
}

type locationRequest struct {
	Region    string `json:"region"`
	Provincia string `json:"provincia"`
	Municipio string `json:"municipio"`
	Distrito  string `json:"distrito"`
	Sector    string `json:"sector"`
}

// Validate maneja POST /api/geo/validate
func (h *GeoHandler) Validate(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := geo.ValidateHierarchy(h.lookup, req.Region, req.Provincia, req.Municipio, req.Distrito, req.Sector); err != nil {
		respond(c, http.StatusOK, models.Fail[bool](err))
		return
	}
	c.JSON(http.StatusOK, models.Ok(true))
}

// Register mounts the geo routes.
func (h *GeoHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/geo")
	{
		g.GET("/regiones", h.Regiones)
		g.GET("/provincias", h.Provincias)
		g.GET("/municipios", h.Municipios)
		g.GET("/distritos", h.Distritos)
		g.GET("/sectores", h.Sectores)
		g.POST("/validate", h.Validate)
	}
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
