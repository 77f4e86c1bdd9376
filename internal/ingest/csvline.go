package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// lineReader：按物理行切分后逐行交给 csv 解析
// 约束：空行跳过且不计数；字段内换行不受支持（ONSPD 不含）
type lineReader struct {
	br    *bufio.Reader
	comma rune
	line  int
}

func newLineReader(src io.Reader, comma rune) *lineReader {
	if comma == 0 {
		comma = ','
	}
	return &lineReader{br: bufio.NewReaderSize(src, 64*1024), comma: comma}
}

// next：行格式错误以 *csv.ParseError 返回，输入结束返回 io.EOF，其余为读取错误
func (lr *lineReader) next() ([]string, error) {
	for {
		raw, err := lr.br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if raw == "" && err != nil {
			return nil, io.EOF
		}
		lr.line++
		text := strings.TrimRight(raw, "\r\n")
		if lr.line == 1 {
			text = strings.TrimPrefix(text, "\uFEFF")
		}
		if strings.TrimSpace(text) == "" {
			if err != nil {
				return nil, io.EOF
			}
			continue
		}
		return lr.parse(text)
	}
}

func (lr *lineReader) parse(text string) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = lr.comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	fields, err := cr.Read()
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		pe.StartLine, pe.Line = lr.line, lr.line
		return nil, pe
	}
	if err != nil {
		return nil, &csv.ParseError{StartLine: lr.line, Line: lr.line, Err: err}
	}
	return fields, nil
}
