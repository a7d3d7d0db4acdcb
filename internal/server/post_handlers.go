package server

import (
	"quill/internal/repository"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

// listQuery builds the listing query from the request. Both camelCase and
// snake_case parameter names are accepted.
func listQuery(c *fiber.Ctx) (repository.ListQuery, error) {
	authorID, err := optionalQueryID(c, "author_id", "authorId", "author_id")
	if err != nil {
		return repository.ListQuery{}, err
	}
	categoryID, err := optionalQueryID(c, "category_id", "categoryId", "category_id")
	if err != nil {
		return repository.ListQuery{}, err
	}

	return repository.ListQuery{
		Page:          positiveQueryInt(c, "page"),
		Limit:         positiveQueryInt(c, "limit"),
		SortBy:        queryAlias(c, "sortBy", "sort_by"),
		SortOrder:     queryAlias(c, "sortOrder", "sort_order"),
		Search:        queryAlias(c, "search", "q"),
		Tags:          splitList(queryAlias(c, "tags", "tag")),
		AuthorID:      authorID,
		CategoryID:    categoryID,
		CurrentUserID: currentUserID(c),
	}, nil
}

// GetPosts handles GET /api/posts
// @Summary List published posts
// @Tags posts
// @Produce json
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 10, max 100)"
// @Param sortBy query string false "created_at, updated_at, published_at, title, view_count, likes_count, comments_count"
// @Param sortOrder query string false "ASC or DESC"
// @Param search query string false "Substring of title or content"
// @Param tags query string false "Comma-separated tag names"
// @Param authorId query int false "Author filter"
// @Param categoryId query int false "Category filter"
// @Success 200 {object} service.PostList
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	q, err := listQuery(c)
	if err != nil {
		return err
	}

	list, err := s.postService.ListPosts(c.UserContext(), q)
	if err != nil {
		return err
	}
	return c.JSON(list)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a published post with its comments
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	post, err := s.postService.GetPost(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreatePostInput true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req service.CreatePostInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.UserID = userID

	post, err := s.postService.CreatePost(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Update own post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body service.UpdatePostInput true "Fields to change"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	postID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req service.UpdatePostInput
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.UserID = userID
	req.PostID = postID

	post, err := s.postService.UpdatePost(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete own post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{message=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	postID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{UserID: userID, PostID: postID}); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Post deleted successfully"})
}

// ToggleLike handles POST /api/posts/:id/like
// @Summary Like or unlike a post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{message=string,liked=bool,likes_count=int}
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	postID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	result, err := s.postService.ToggleLike(c.UserContext(), userID, postID)
	if err != nil {
		return err
	}

	message := "Post unliked"
	if result.Liked {
		message = "Post liked"
	}
	return c.JSON(fiber.Map{
		"message":     message,
		"liked":       result.Liked,
		"likes_count": result.LikesCount,
	})
}
