// Package i18n holds the UI string tables served to the portal and used for
// API response messages.
package i18n

import "strings"

type Language string

const (
	Indonesian Language = "id"
	English    Language = "en"

	DefaultLanguage = Indonesian
)

var translations = map[Language]map[string]string{
	Indonesian: {
		"welcome":             "Selamat datang kembali, Admin!",
		"student_welcome":     "Selamat datang di portal siswa!",
		"login_failed":        "Login gagal",
		"invalid_credentials": "Email atau kata sandi salah",
		"student_not_found":   "Siswa dengan email tersebut tidak ditemukan",
		"dob_missing":         "Tanggal lahir belum diisi, hubungi admin",
		"dob_wrong":           "Tanggal lahir salah (format: DDMMYYYY)",
		"student_inactive":    "Akun siswa tidak aktif, hubungi admin",
		"logout_success":      "Berhasil keluar",
		"unauthorized":        "Silakan masuk terlebih dahulu",
		"forbidden":           "Anda tidak memiliki akses ke halaman ini",
		"loading":             "Memuat...",

		"save_success":   "Data berhasil disimpan",
		"save_failed":    "Gagal menyimpan data",
		"update_success": "Data berhasil diperbarui",
		"delete_success": "Data berhasil dihapus",
		"delete_failed":  "Gagal menghapus data",
		"confirm_delete": "Tindakan ini tidak dapat dibatalkan. Data akan dihapus secara permanen.",
		"fetch_failed":   "Gagal memuat data",
		"not_found":      "Data tidak ditemukan",
		"invalid_input":  "Data yang dikirim tidak valid",
		"validation":     "Validasi gagal",

		"no_students":   "Belum ada data siswa",
		"no_grades":     "Belum ada data nilai",
		"no_attendance": "Belum ada siswa aktif untuk diabsen",
		"no_schedules":  "Belum ada jadwal kelas",

		"attendance_saved":   "Absensi tersimpan",
		"attendance_cleared": "Absensi dihapus",
		"attendance_failed":  "Gagal menyimpan absensi",

		"upload_success": "Foto profil berhasil diperbarui",
		"upload_failed":  "Gagal mengunggah foto",
		"no_file":        "Tidak ada file yang diunggah",
		"invalid_file":   "Format file tidak didukung",

		"invalid_phone":    "Nomor telepon tidak valid atau belum diisi.",
		"no_upcoming":      "Selesai untuk hari ini!",
		"language_saved":   "Bahasa diperbarui",
		"unknown_language": "Bahasa tidak didukung",
		"email_taken":      "Email sudah digunakan siswa lain",
		"internal_error":   "Terjadi kesalahan pada server",
		"invalid_time":     "Jam selesai harus setelah jam mulai",
		"import_success":   "Impor nilai selesai",
		"invalid_range":    "Rentang tanggal tidak valid",

		"present":    "Hadir",
		"permission": "Izin",
		"sick":       "Sakit",
		"alpha":      "Alpa",
		"unmarked":   "Belum diisi",
		"recap":      "Rekap absensi",
	},
	English: {
		"welcome":             "Welcome back, Admin!",
		"student_welcome":     "Welcome to the student portal!",
		"login_failed":        "Login failed",
		"invalid_credentials": "Invalid email or password",
		"student_not_found":   "No student found with that email",
		"dob_missing":         "Date of birth is not set, please contact the admin",
		"dob_wrong":           "Wrong date of birth (format: DDMMYYYY)",
		"student_inactive":    "Student account is inactive, please contact the admin",
		"logout_success":      "Logged out",
		"unauthorized":        "Please sign in first",
		"forbidden":           "You do not have access to this page",
		"loading":             "Loading...",

		"save_success":   "Saved successfully",
		"save_failed":    "Failed to save",
		"update_success": "Updated successfully",
		"delete_success": "Deleted successfully",
		"delete_failed":  "Failed to delete",
		"confirm_delete": "This action cannot be undone. The data will be permanently deleted.",
		"fetch_failed":   "Failed to load data",
		"not_found":      "Not found",
		"invalid_input":  "Invalid request body",
		"validation":     "Validation failed",

		"no_students":   "No students yet",
		"no_grades":     "No grades yet",
		"no_attendance": "No active students to mark",
		"no_schedules":  "No class schedules yet",

		"attendance_saved":   "Attendance saved",
		"attendance_cleared": "Attendance cleared",
		"attendance_failed":  "Failed to save attendance",

		"upload_success": "Profile photo updated",
		"upload_failed":  "Failed to upload photo",
		"no_file":        "No file uploaded",
		"invalid_file":   "Unsupported file type",

		"invalid_phone":    "Phone number is invalid or empty.",
		"no_upcoming":      "Done for today!",
		"language_saved":   "Language updated",
		"unknown_language": "Unsupported language",
		"email_taken":      "Email is already used by another student",
		"internal_error":   "Internal server error",
		"invalid_time":     "End time must be after start time",
		"import_success":   "Grade import finished",
		"invalid_range":    "Invalid date range",

		"present":    "Present",
		"permission": "Permission",
		"sick":       "Sick",
		"alpha":      "Absent",
		"unmarked":   "Not marked",
		"recap":      "Attendance recap",
	},
}

// Parse normalizes a language code; ok is false for unsupported codes.
func Parse(code string) (Language, bool) {
	lang := Language(strings.ToLower(strings.TrimSpace(code)))
	_, ok := translations[lang]
	return lang, ok
}

// T looks up key in lang, falling back to Indonesian and then to the key itself.
func T(lang Language, key string) string {
	if s, ok := translations[lang][key]; ok && s != "" {
		return s
	}
	if s, ok := translations[DefaultLanguage][key]; ok && s != "" {
		return s
	}
	return key
}

// Table returns a copy of the dictionary for lang, filled with Indonesian
// entries where lang has none.
func Table(lang Language) map[string]string {
	out := make(map[string]string, len(translations[DefaultLanguage]))
	for k, v := range translations[DefaultLanguage] {
		out[k] = v
	}
	for k, v := range translations[lang] {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
