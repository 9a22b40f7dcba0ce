package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики операций с файлами
var (
	// uploadsTotal — успешные загрузки.
	uploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fh_uploads_total",
		Help: "Общее количество успешных загрузок",
	})

	// uploadBytesTotal — объём принятых данных.
	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fh_upload_bytes_total",
		Help: "Общий объём загруженных данных в байтах",
	})

	// uploadsRejectedTotal — отклонённые загрузки по причине.
	uploadsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fh_uploads_rejected_total",
		Help: "Количество отклонённых загрузок",
	}, []string{"reason"})

	// idRetriesTotal — повторы выделения идентификатора из-за коллизии в индексе.
	idRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fh_id_retries_total",
		Help: "Количество повторов выделения идентификатора",
	})

	// deletesTotal — явные удаления через API.
	deletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fh_deletes_total",
		Help: "Общее количество удалений через API",
	})

	// filesStored — количество записей в индексе после последней очистки или сверки.
	filesStored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fh_files_stored",
		Help: "Количество файлов в индексе",
	})
)
