package handlers

import (
	"net/http"
	"strconv"

	"goodmoments/posts"

	"github.com/gin-gonic/gin"
)

type postRequest struct {
	Title        string   `json:"title"`
	Message      string   `json:"message"`
	Tags         []string `json:"tags"`
	SelectedFile string   `json:"selectedFile"`
}

func (r postRequest) input() posts.Input {
	return posts.Input{
		Title:        r.Title,
		Message:      r.Message,
		Tags:         r.Tags,
		SelectedFile: r.SelectedFile,
	}
}

type commentRequest struct {
	Value string `json:"value"`
}

// PostHandler serves the /posts endpoints.
type PostHandler struct {
	posts *posts.Service
}

func NewPostHandler(svc *posts.Service) *PostHandler {
	return &PostHandler{posts: svc}
}

func (h *PostHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.posts.List(ctx, page)
	if err != nil {
		respondError(c, "ListPosts", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PostHandler) Search(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	found, err := h.posts.Search(ctx, c.Query("searchQuery"), c.Query("tags"))
	if err != nil {
		respondError(c, "SearchPosts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": found})
}

func (h *PostHandler) ByCreator(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	found, err := h.posts.ByCreator(ctx, c.Query("name"))
	if err != nil {
		respondError(c, "PostsByCreator", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": found})
}

func (h *PostHandler) Get(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.posts.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, "GetPost", err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) Create(c *gin.Context) {
	var req postRequest
	if !bind(c, "CreatePost", &req) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.posts.Create(ctx, caller(c), req.input())
	if err != nil {
		respondError(c, "CreatePost", err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *PostHandler) Update(c *gin.Context) {
	var req postRequest
	if !bind(c, "UpdatePost", &req) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.posts.Update(ctx, caller(c), c.Param("id"), req.input())
	if err != nil {
		respondError(c, "UpdatePost", err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) Delete(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.posts.Delete(ctx, caller(c), c.Param("id")); err != nil {
		respondError(c, "DeletePost", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully."})
}

func (h *PostHandler) Like(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.posts.Like(ctx, caller(c), c.Param("id"))
	if err != nil {
		respondError(c, "LikePost", err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) Comment(c *gin.Context) {
	var req commentRequest
	if !bind(c, "CommentPost", &req) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.posts.Comment(ctx, caller(c), c.Param("id"), req.Value)
	if err != nil {
		respondError(c, "CommentPost", err)
		return
	}
	c.JSON(http.StatusOK, post)
}
