package routes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chatpdf-backend/internal/config"
	"chatpdf-backend/internal/fault"
	"chatpdf-backend/internal/queue"
	"chatpdf-backend/internal/store"
	"chatpdf-backend/middleware"
	"chatpdf-backend/models"
	"chatpdf-backend/services"
	"chatpdf-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

func SetupDocumentRoutes(router *gin.Engine, cfg *config.Config, st *store.Store,
	queueClient *asynq.Client, deleter *services.Deleter, authMW *middleware.AuthMiddleware) {

	docs := router.Group("/documents")
	docs.Use(authMW.RequireAuth())

	docs.POST("", HandleUpload(cfg, st, queueClient))
	docs.GET("", ListDocuments(st))
	docs.GET("/:id/status", DocumentStatus(st))
	docs.GET("/:id/export", ExportTranscript(st))
	docs.DELETE("/:id", DeleteDocument(deleter))
}

// HandleUpload accepts a PDF, records it as uploaded, and enqueues the
// indexing task. The connection never waits on indexing.
func HandleUpload(cfg *config.Config, st *store.Store, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := middleware.GetUserID(c)

		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large",
				"File size exceeds maximum limit", nil)
			return
		}

		file, header, err := c.Request.FormFile("pdf")
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "no_file", "No PDF file provided", nil)
			return
		}
		defer file.Close()

		ct := header.Header.Get("Content-Type")
		if !strings.Contains(ct, "pdf") && !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_file_type",
				"Only PDF files are allowed", nil)
			return
		}

		if header.Size > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large",
				"File size exceeds maximum limit", nil)
			return
		}

		// Sniff the container header before accepting the upload
		headerBuf := make([]byte, 5)
		if _, err := io.ReadFull(file, headerBuf); err != nil || string(headerBuf[:4]) != "%PDF" {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_pdf",
				"File does not appear to be a valid PDF", nil)
			return
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			utils.RespondWithInternalError(c, "Failed to reset file for saving", nil)
			return
		}

		documentID := uuid.NewString()
		filePath := services.UploadPath(cfg.StorageDir, ownerID, documentID)

		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			utils.RespondWithInternalError(c, "Failed to create upload directory", nil)
			return
		}

		dst, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to open destination", nil)
			return
		}
		if _, err := io.Copy(dst, io.LimitReader(file, cfg.MaxFileSize)); err != nil {
			dst.Close()
			os.Remove(filePath)
			utils.RespondWithInternalError(c, "Failed to save file", nil)
			return
		}
		dst.Close()

		now := time.Now()
		doc := &models.Document{
			ID:         documentID,
			OwnerID:    ownerID,
			Filename:   header.Filename,
			Size:       header.Size,
			Status:     models.StatusUploaded,
			Namespace:  fmt.Sprintf("doc_%s", documentID),
			UploadedAt: now,
			UpdatedAt:  now,
		}

		ctx := context.Background()
		if err := st.CreateDocument(ctx, doc); err != nil {
			os.Remove(filePath)
			utils.RespondWithInternalError(c, "Failed to create document record", nil)
			return
		}

		task, err := queue.NewIndexDocumentTask(documentID, filePath)
		if err == nil {
			_, err = queueClient.Enqueue(task)
		}
		if err != nil {
			os.Remove(filePath)
			st.DeleteDocument(ctx, documentID)
			utils.RespondWithError(c, http.StatusInternalServerError, "queue_error",
				"Failed to enqueue indexing task", nil)
			return
		}

		c.JSON(http.StatusAccepted, models.UploadResponse{
			DocumentID: documentID,
			Filename:   header.Filename,
			Size:       header.Size,
			Status:     models.StatusUploaded,
			UploadedAt: now,
		})
	}
}

// ListDocuments returns the caller's documents, newest first.
func ListDocuments(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := middleware.GetUserID(c)

		docs, err := st.ListDocuments(context.Background(), ownerID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to retrieve documents", nil)
			return
		}
		if docs == nil {
			docs = []models.Document{}
		}

		c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
	}
}

// DocumentStatus reports where a document is in the indexing pipeline.
func DocumentStatus(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, ok := ownedDocument(c, st)
		if !ok {
			return
		}

		c.JSON(http.StatusOK, models.StatusResponse{
			DocumentID:    doc.ID,
			Status:        doc.Status,
			FailureReason: doc.FailureReason,
			PageCount:     doc.PageCount,
			ChunkCount:    doc.ChunkCount,
		})
	}
}

// ExportTranscript streams the transcript as JSON or an Excel workbook.
func ExportTranscript(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, ok := ownedDocument(c, st)
		if !ok {
			return
		}

		turns, err := st.ListTurns(context.Background(), doc.ID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to retrieve transcript", nil)
			return
		}

		switch c.DefaultQuery("format", "json") {
		case "excel":
			buf, err := services.TranscriptWorkbook(doc, turns)
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to build workbook", nil)
				return
			}
			filename := fmt.Sprintf("transcript_%s.xlsx", doc.ID)
			c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
			c.Data(http.StatusOK,
				"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
		case "json":
			c.JSON(http.StatusOK, services.BuildTranscriptExport(doc, turns))
		default:
			utils.RespondWithBadRequest(c, "Unknown export format", gin.H{"supported": []string{"json", "excel"}})
		}
	}
}

// DeleteDocument removes a document, its chunks, its vectors, and per
// policy its transcript.
func DeleteDocument(deleter *services.Deleter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := middleware.GetUserID(c)
		documentID := c.Param("id")

		if err := deleter.Delete(context.Background(), ownerID, documentID); err != nil {
			utils.RespondWithFault(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Document deleted", "document_id": documentID})
	}
}

// ownedDocument loads the path document and enforces ownership. Writes
// the error response itself when the document is unavailable.
func ownedDocument(c *gin.Context, st *store.Store) (*models.Document, bool) {
	ownerID := middleware.GetUserID(c)
	documentID := c.Param("id")

	doc, err := st.GetDocument(context.Background(), documentID)
	if err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			utils.RespondWithNotFound(c, "Document not found")
		} else {
			utils.RespondWithInternalError(c, "Failed to retrieve document", nil)
		}
		return nil, false
	}
	if doc.OwnerID != ownerID {
		utils.RespondWithNotFound(c, "Document not found")
		return nil, false
	}
	return doc, true
}
