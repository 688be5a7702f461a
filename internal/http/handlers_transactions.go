package http

import (
	"net/http"

	"saifuu/internal/core"
	applog "saifuu/internal/log"
	"saifuu/internal/validation"
)

const entityTransaction = "Transaction"

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q, err := validation.TransactionList(r.URL.Query())
	if err != nil {
		s.writeError(w, r, entityTransaction, applog.OpList, err)
		return
	}
	transactions, total, err := s.stores.Transactions.ListTransactions(r.Context(), q)
	if err != nil {
		s.writeError(w, r, entityTransaction, applog.OpList, err)
		return
	}
	NewResponse().
		List(transactions).
		Paginate(core.NewPagination(q.Page, total)).
		Filters(q.Filters).
		Sort(q.Sort).
		Write(w)
}

func (s *Server) handleTransactionStats(w http.ResponseWriter, r *http.Request) {
	q, err := validation.TransactionStats(r.URL.Query())
	if err != nil {
		s.writeError(w, r, entityTransaction, applog.OpStats, err)
		return
	}
	stats, err := s.stores.Transactions.TransactionStats(r.Context(), q)
	if err != nil {
		s.writeError(w, r, entityTransaction, applog.OpStats, err)
		return
	}
	NewResponse().Data(stats).Filters(q).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, entityTransaction, applog.OpRead, err)
		return
	}
	tx, err := found(s.stores.Transactions.GetTransaction(r.Context(), id))
	if err != nil {
		s.writeError(w, r, entityTransaction, applog.OpRead, err)
		return
	}
	NewResponse().Data(tx).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, entityTransaction, applog.OpCreate, err)
		return
	}
	in, err := validation.TransactionCreate(body)
	if err != nil {
		s.writeError(w, r, entityTransaction, applog.OpCreate, err)
		return
	}
	tx, err := s.stores.TransactionWriter.CreateTransaction(r.Context(), in)
	if err != nil {
		s.writeError(w, r, entityTransaction, applog.OpCreate, err)
		return
	}
	NewResponse().Status(http.StatusCreated).Data(tx).Message("Transaction created successfully").Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, entityTransaction, applog.OpUpdate, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, entityTransaction, applog.OpUpdate, err)
		return
	}
	patch, err := validation.TransactionUpdate(body)
	if err != nil {
		s.writeError(w, r, entityTransaction, applog.OpUpdate, err)
		return
	}
	tx, err := s.stores.TransactionWriter.UpdateTransaction(r.Context(), id, patch)
	if err != nil {
		s.writeError(w, r, entityTransaction, applog.OpUpdate, err)
		return
	}
	NewResponse().Data(tx).Message("Transaction updated successfully").Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, entityTransaction, applog.OpDelete, err)
		return
	}
	tx, err := s.stores.TransactionWriter.DeleteTransaction(r.Context(), id)
	if err != nil {
		s.writeError(w, r, entityTransaction, applog.OpDelete, err)
		return
	}
	NewResponse().Data(tx).Message("Transaction deleted successfully").Write(w)
}
