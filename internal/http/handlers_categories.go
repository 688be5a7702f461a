package http

import (
	"net/http"

	applog "saifuu/internal/log"
	"saifuu/internal/validation"
)

const entityCategory = "Category"

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	filter, err := validation.CategoryList(r.URL.Query())
	if err != nil {
		s.writeError(w, r, entityCategory, applog.OpList, err)
		return
	}
	categories, err := s.stores.Categories.ListCategories(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, entityCategory, applog.OpList, err)
		return
	}
	NewResponse().List(categories).Filters(filter).Write(w)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, entityCategory, applog.OpRead, err)
		return
	}
	category, err := found(s.stores.Categories.GetCategory(r.Context(), id))
	if err != nil {
		s.writeError(w, r, entityCategory, applog.OpRead, err)
		return
	}
	NewResponse().Data(category).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, entityCategory, applog.OpCreate, err)
		return
	}
	in, err := validation.CategoryCreate(body)
	if err != nil {
		s.writeError(w, r, entityCategory, applog.OpCreate, err)
		return
	}
	category, err := s.stores.Categories.CreateCategory(r.Context(), in)
	if err != nil {
		s.writeError(w, r, entityCategory, applog.OpCreate, err)
		return
	}
	NewResponse().Status(http.StatusCreated).Data(category).Message("Category created successfully").Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, entityCategory, applog.OpUpdate, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, entityCategory, applog.OpUpdate, err)
		return
	}
	patch, err := validation.CategoryUpdate(body)
	if err != nil {
		s.writeError(w, r, entityCategory, applog.OpUpdate, err)
		return
	}
	category, err := s.stores.Categories.UpdateCategory(r.Context(), id, patch)
	if err != nil {
		s.writeError(w, r, entityCategory, applog.OpUpdate, err)
		return
	}
	NewResponse().Data(category).Message("Category updated successfully").Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, entityCategory, applog.OpDelete, err)
		return
	}
	category, err := s.stores.Categories.DeleteCategory(r.Context(), id)
	if err != nil {
		s.writeError(w, r, entityCategory, applog.OpDelete, err)
		return
	}
	NewResponse().Data(category).Message("Category deleted successfully").Write(w)
}

func (s *Server) handleReorderCategories(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, entityCategory, applog.OpReorder, err)
		return
	}
	ids, err := validation.CategoryReorder(body)
	if err != nil {
		s.writeError(w, r, entityCategory, applog.OpReorder, err)
		return
	}
	categories, err := s.stores.Categories.ReorderCategories(r.Context(), ids)
	if err != nil {
		s.writeError(w, r, entityCategory, applog.OpReorder, err)
		return
	}
	NewResponse().List(categories).Message("Categories reordered successfully").Write(w)
}
