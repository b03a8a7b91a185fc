package api

import (
	"net/http"
	"strings"

	"github.com/demesne/go-demesne-server/services"
	"github.com/gin-gonic/gin"
)

type ProfileApi struct {
	profileService *services.ProfileService
}

func NewProfileApi(profileService *services.ProfileService) *ProfileApi {
	return &ProfileApi{profileService: profileService}
}

// Public profiles
// @Summary Get profiles
// @Description Looks up public profiles by DID or handle (repeat actors or separate with commas)
// @Tags Profile
// @Param actors query []string true "DIDs or handles"
// @Success 200 {array} types.Profile
// @Router /api/v1/profiles [get]
func (pa *ProfileApi) GetProfiles(c *gin.Context) {
	var actors []string
	for _, a := range c.QueryArray("actors") {
		for _, part := range strings.Split(a, ",") {
			if part = strings.TrimSpace(part); part != "" {
				actors = append(actors, part)
			}
		}
	}
	if len(actors) == 0 {
		ApiErrorf(c, http.StatusBadRequest, "actors is required")
		return
	}
	profiles, err := pa.profileService.GetProfiles(c.Request.Context(), actors)
	if err != nil {
		ApiServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profiles)
}
