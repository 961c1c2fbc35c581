package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"cmsmini/internal/middleware"
	"cmsmini/internal/model"
	"cmsmini/internal/service"
	"cmsmini/internal/storage"
	"cmsmini/internal/utils"

	"github.com/gin-gonic/gin"
)

// PostHandler handles post related requests
type PostHandler struct {
	service service.PostService
	assets  storage.AssetStore
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(s service.PostService, assets storage.AssetStore) *PostHandler {
	return &PostHandler{service: s, assets: assets}
}

// Helper to get authenticated user ID from context
func getAuthUserID(c *gin.Context) (int, error) {
	userIDVal, exists := c.Get(middleware.AuthUserKey)
	if !exists {
		return 0, errors.New("user ID not found in context")
	}
	userID, ok := userIDVal.(int)
	if !ok {
		return 0, errors.New("invalid user ID type in context")
	}
	return userID, nil
}

// Helper to get authenticated user role from context
func getAuthUserRole(c *gin.Context) (string, error) {
	roleVal, exists := c.Get(middleware.AuthRoleKey)
	if !exists {
		return "", errors.New("user role not found in context")
	}
	role, ok := roleVal.(string)
	if !ok {
		return "", errors.New("invalid user role type in context")
	}
	return role, nil
}

// postInputFromForm reads the multipart form fields shared by create and
// update. The image part is optional.
func postInputFromForm(c *gin.Context) model.PostInput {
	in := model.PostInput{
		Title:        c.PostForm("title"),
		Content:      c.PostForm("content"),
		ImageAltText: c.PostForm("image_alt_text"),
	}
	if file, err := c.FormFile("image"); err == nil {
		in.Image = file
	}
	return in
}

// respondPostError maps service errors onto HTTP statuses
func respondPostError(c *gin.Context, err error, action string) {
	var ve model.ValidationErrors
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"errors": ve})
	case errors.Is(err, service.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		log.Printf("Error %s post: %v", action, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action + " post"})
	}
}

func (h *PostHandler) CreatePost(c *gin.Context) {
	userID, err := getAuthUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	post, err := h.service.Create(c.Request.Context(), userID, postInputFromForm(c))
	if err != nil {
		respondPostError(c, err, "create")
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *PostHandler) ListPosts(c *gin.Context) {
	userID, err := getAuthUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	userRole, err := getAuthUserRole(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User role not found"})
		return
	}

	posts, err := h.service.List(c.Request.Context(), userID, userRole)
	if err != nil {
		log.Printf("Error listing posts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve posts"})
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *PostHandler) GetPostByID(c *gin.Context) {
	userID, err := getAuthUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	userRole, err := getAuthUserRole(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User role not found"})
		return
	}

	postID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	post, err := h.service.Get(c.Request.Context(), postID, userID, userRole)
	if err != nil {
		respondPostError(c, err, "retrieve")
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) UpdatePost(c *gin.Context) {
	userID, err := getAuthUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	userRole, err := getAuthUserRole(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User role not found"})
		return
	}

	postID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	post, err := h.service.Update(c.Request.Context(), postID, userID, userRole, postInputFromForm(c))
	if err != nil {
		respondPostError(c, err, "update")
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) DeletePost(c *gin.Context) {
	userID, err := getAuthUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	userRole, err := getAuthUserRole(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User role not found"})
		return
	}

	postID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), postID, userID, userRole); err != nil {
		respondPostError(c, err, "delete")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// GetImage serves a stored post image. Only names with the generated-token
// shape ever reach the filesystem.
func (h *PostHandler) GetImage(c *gin.Context) {
	name := c.Param("filename")
	if !utils.IsGeneratedImageName(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}
	if !h.assets.Exists(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}
	c.File(h.assets.Path(name))
}

// --- Admin Routes ---

func (h *PostHandler) GetStatsAdmin(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		log.Printf("Error getting post stats for admin: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *PostHandler) ExportPostsCSVAdmin(c *gin.Context) {
	csvBuffer, err := h.service.ExportCSV(c.Request.Context())
	if err != nil {
		log.Printf("Error exporting posts to CSV for admin: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export posts to CSV"})
		return
	}

	fileName := fmt.Sprintf("posts_export_%s.csv", time.Now().Format("20060102_150405"))
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	c.Data(http.StatusOK, "text/csv", csvBuffer.Bytes())
}

// RegisterPostRoutes registers post routes
func (h *PostHandler) RegisterPostRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, adminMW gin.HandlerFunc) {
	postRoutes := rg.Group("/posts")
	postRoutes.Use(authMW) // All routes in this group require authentication
	{
		postRoutes.POST("", h.CreatePost)
		postRoutes.GET("", h.ListPosts)
		postRoutes.GET("/:id", h.GetPostByID)   // Service layer handles ownership for non-admins
		postRoutes.PUT("/:id", h.UpdatePost)    // Service layer handles ownership
		postRoutes.DELETE("/:id", h.DeletePost) // Service layer handles ownership for non-admins
	}

	adminRoutes := rg.Group("/admin")
	adminRoutes.Use(authMW)  // Requires authentication
	adminRoutes.Use(adminMW) // Requires admin role
	{
		adminRoutes.GET("/stats", h.GetStatsAdmin)
		adminRoutes.GET("/posts/export/csv", h.ExportPostsCSVAdmin)
	}
}
