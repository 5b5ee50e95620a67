package domain

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeRecord converts a resolver row into a PatientRecord.
// Columns that fail to decode are left unset and reported in the joined error.
func DecodeRecord(row map[string]any) (PatientRecord, error) {
	var rec PatientRecord
	if err := decodeWeak(row, &rec); err == nil {
		return rec, nil
	}
	rec = PatientRecord{}
	err := decodePartial(row, &rec, func() any { return &PatientRecord{} }, func(dst, src any) {
		mergeRecordField(dst.(*PatientRecord), src.(*PatientRecord))
	})
	return rec, err
}

// DecodeVitals extracts the vitals subset from a resolver row.
// Invalid values degrade to nil rather than failing the whole decode.
func DecodeVitals(row map[string]any) (Vitals, error) {
	var v Vitals
	if err := decodeWeak(row, &v); err == nil {
		return v, nil
	}
	v = Vitals{}
	err := decodePartial(row, &v, func() any { return &Vitals{} }, func(dst, src any) {
		mergeVitalsField(dst.(*Vitals), src.(*Vitals))
	})
	return v, err
}

func decodeWeak(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ZeroFields:       false,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// decodePartial decodes each key on its own so one bad column does not discard the others.
func decodePartial(row map[string]any, dst any, fresh func() any, merge func(dst, src any)) error {
	var errs []error
	for key, value := range row {
		if value == nil {
			continue
		}
		tmp := fresh()
		if err := decodeWeak(map[string]any{key: value}, tmp); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		merge(dst, tmp)
	}
	return errors.Join(errs...)
}

func mergeRecordField(dst, src *PatientRecord) {
	if src.VisitID != 0 {
		dst.VisitID = src.VisitID
	}
	if src.PatientID != 0 {
		dst.PatientID = src.PatientID
	}
	if src.Sex != "" {
		dst.Sex = src.Sex
	}
	if src.AgeBucket != "" {
		dst.AgeBucket = src.AgeBucket
	}
	setFloat(&dst.HeartRate, src.HeartRate)
	setFloat(&dst.BPSystolic, src.BPSystolic)
	setFloat(&dst.BPDiastolic, src.BPDiastolic)
	setFloat(&dst.RespRate, src.RespRate)
	setFloat(&dst.TemperatureC, src.TemperatureC)
	setFloat(&dst.OxygenSaturation, src.OxygenSaturation)
	if src.ESI != nil {
		dst.ESI = Ptr(*src.ESI)
	}
	if src.MentalStatus != "" {
		dst.MentalStatus = src.MentalStatus
	}
	if src.RecentAdmissions30d != 0 {
		dst.RecentAdmissions30d = src.RecentAdmissions30d
	}
	if src.AdmissionDate != "" {
		dst.AdmissionDate = src.AdmissionDate
	}
	if src.TriageNote != "" {
		dst.TriageNote = src.TriageNote
	}
	if src.HistoricalVisitCount != 0 {
		dst.HistoricalVisitCount = src.HistoricalVisitCount
	}
	if src.HistoricalAdmissionCount != 0 {
		dst.HistoricalAdmissionCount = src.HistoricalAdmissionCount
	}
	setFloat(&dst.AvgHRHistory, src.AvgHRHistory)
	setFloat(&dst.AvgBPSysHistory, src.AvgBPSysHistory)
	if src.LastAdmissionDate != "" {
		dst.LastAdmissionDate = src.LastAdmissionDate
	}
	for k, v := range src.Extra {
		if dst.Extra == nil {
			dst.Extra = map[string]any{}
		}
		dst.Extra[k] = v
	}
}

func mergeVitalsField(dst, src *Vitals) {
	setString(&dst.Sex, src.Sex)
	setString(&dst.AgeBucket, src.AgeBucket)
	setFloat(&dst.HeartRate, src.HeartRate)
	setFloat(&dst.RespRate, src.RespRate)
	setFloat(&dst.BPSystolic, src.BPSystolic)
	setFloat(&dst.BPDiastolic, src.BPDiastolic)
	setFloat(&dst.OxygenSaturation, src.OxygenSaturation)
	setFloat(&dst.TemperatureC, src.TemperatureC)
	if src.ESI != nil {
		dst.ESI = Ptr(*src.ESI)
	}
	setString(&dst.MentalStatus, src.MentalStatus)
	if src.RecentAdmissions != nil {
		dst.RecentAdmissions = Ptr(*src.RecentAdmissions)
	}
}
